package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fundamenta/fundi/internal/fundi"
	"github.com/fundamenta/fundi/internal/models"
)

// withheldCrisisText replaces the user's words in the transcript when the turn was a crisis.
const withheldCrisisText = "[message withheld: crisis support shown]"

// chatHandler answers one chat turn (POST /fundi/chat).
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	requestID := RequestIDFrom(r.Context())
	slog.Debug("Server.chatHandler: processing chat request", "requestID", requestID, "subject", subjectFrom(r.Context()))

	var req models.ChatRequest
	if !decodeJSONBody(w, r, "Server.chatHandler", &req) {
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err, "requestID", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	previous := req.PreviousMessages
	if previous == nil && req.ConversationID > 0 {
		previous = s.loadHistory(req.ConversationID, requestID)
	}
	var page models.PageContext
	if req.Context != nil {
		page = *req.Context
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.chatTimeout)
	defer cancel()
	resp := s.chat.Respond(ctx, fundi.Request{
		Message:           req.Message,
		ConversationID:    req.ConversationID,
		Previous:          previous,
		PreferredCategory: req.Category,
		Page:              page,
		RequestID:         requestID,
	})

	if req.ConversationID > 0 {
		s.persistTurn(req.ConversationID, req.Message, resp, requestID)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// loadHistory returns the stored transcript tail as provider history. Failures are logged and
// the turn proceeds without history.
func (s *Server) loadHistory(conversationID int64, requestID string) []models.Message {
	if s.st == nil {
		return nil
	}
	stored, err := s.st.GetMessages(conversationID, models.MaxHistoryMessages)
	if err != nil {
		slog.Warn("Server.loadHistory: failed to load history", "error", err, "conversationID", conversationID, "requestID", requestID)
		return nil
	}
	history := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, models.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func (s *Server) persistTurn(conversationID int64, message string, resp models.StructuredResponse, requestID string) {
	if s.st == nil {
		return
	}
	if resp.Provider == fundi.SafetyProvider {
		message = withheldCrisisText
	}
	now := s.now().UTC()
	turns := []models.StoredMessage{
		{ConversationID: conversationID, Role: models.RoleUser, Content: message, CreatedAt: now},
		{ConversationID: conversationID, Role: models.RoleAssistant, Content: resp.Response, Category: string(resp.Category), CreatedAt: now},
	}
	for _, m := range turns {
		if err := s.st.AddMessage(m); err != nil {
			slog.Error("Server.persistTurn: failed to store message", "error", err, "conversationID", conversationID, "role", m.Role, "requestID", requestID)
			return
		}
	}
}

// messagesHandler returns a stored transcript (GET /fundi/conversations/{id}/messages).
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid conversation id"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit"))
			return
		}
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.StoredMessage{}))
		return
	}

	msgs, err := s.st.GetMessages(id, limit)
	if err != nil {
		slog.Error("Server.messagesHandler: failed to fetch messages", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch messages"))
		return
	}
	if msgs == nil {
		msgs = []models.StoredMessage{}
	}
	slog.Debug("Server.messagesHandler: returning transcript", "conversationID", id, "count", len(msgs))
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

// statusHandler reports the orchestrator state (GET /fundi/status).
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.ops.Status()))
}

// fallbackHandler toggles operator-forced fallback (POST /fundi/fallback).
func (s *Server) fallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.FallbackToggleRequest
	if !decodeJSONBody(w, r, "Server.fallbackHandler", &req) {
		return
	}
	s.ops.SetForcedFallback(req.Enabled)

	msg := "Forced fallback disabled"
	if req.Enabled {
		msg = "Forced fallback enabled"
	}
	slog.Info("Server.fallbackHandler: "+msg, "subject", subjectFrom(r.Context()), "requestID", RequestIDFrom(r.Context()))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(msg, s.ops.Status()))
}

// resetHandler clears the failure state (POST /fundi/reset).
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	s.ops.Reset()
	slog.Info("Server.resetHandler: failure state reset", "subject", subjectFrom(r.Context()), "requestID", RequestIDFrom(r.Context()))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Failure state reset", s.ops.Status()))
}

// healthHandler is the liveness probe. A degraded primary is reported but still healthy, since
// the secondary keeps serving.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if s.ops != nil {
		healthData["provider_state"] = s.ops.Status().State
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
