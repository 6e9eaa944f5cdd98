// Package fundi is the single entry point of the Fundi assistant. It runs one inbound message
// through crisis detection, classification, prompt construction, the provider orchestrator and
// route post-processing.
package fundi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fundamenta/fundi/internal/metrics"
	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/persona"
	"github.com/fundamenta/fundi/internal/routes"
	"github.com/fundamenta/fundi/internal/safety"
	"github.com/fundamenta/fundi/internal/tone"
)

// SafetyProvider is the Provider value stamped on crisis replies.
const SafetyProvider = "safety"

// Responder generates replies and scores emotion. *orchestrator.Orchestrator implements it.
type Responder interface {
	GenerateResponse(ctx context.Context, message, systemPrompt string, history []models.Message) models.StructuredResponse
	AnalyzeEmotion(ctx context.Context, message string) (models.EmotionResult, error)
}

// Categorizer classifies a message. *classifier.Classifier implements it.
type Categorizer interface {
	Classify(ctx context.Context, message, preferredCategory string) models.CategoryResult
}

// CrisisLog records crisis events.
type CrisisLog interface {
	AddCrisisEvent(e models.CrisisEvent) error
}

// Alerter notifies operators of a crisis event.
type Alerter interface {
	Notify(ctx context.Context, event models.CrisisEvent) error
}

// Request is one inbound chat turn.
type Request struct {
	Message           string
	ConversationID    int64
	Previous          []models.Message
	PreferredCategory string
	Page              models.PageContext
	// RequestID correlates logs and crisis events; one is generated when empty.
	RequestID string
}

// Service is safe for concurrent use.
type Service struct {
	responder   Responder
	categorizer Categorizer
	prompts     *persona.Builder
	routes      *routes.Table
	personality tone.Personality
	crisisLog   CrisisLog
	alerter     Alerter
	emotion     bool
	maxHistory  int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPersonaBuilder replaces the embedded persona document.
func WithPersonaBuilder(b *persona.Builder) Option {
	return func(s *Service) {
		s.prompts = b
	}
}

// WithRoutes replaces the embedded route table used for post-processing.
func WithRoutes(t *routes.Table) Option {
	return func(s *Service) {
		s.routes = t
	}
}

// WithPersonality sets the base personality before emotion adjustments.
func WithPersonality(p tone.Personality) Option {
	return func(s *Service) {
		s.personality = p
	}
}

// WithCrisisLog records every crisis short-circuit.
func WithCrisisLog(l CrisisLog) Option {
	return func(s *Service) {
		s.crisisLog = l
	}
}

// WithAlerter notifies operators of crisis short-circuits.
func WithAlerter(a Alerter) Option {
	return func(s *Service) {
		s.alerter = a
	}
}

// WithEmotionAnalysis toggles emotion-driven tone adjustment.
func WithEmotionAnalysis(enabled bool) Option {
	return func(s *Service) {
		s.emotion = enabled
	}
}

// WithMaxHistory caps how many previous messages are sent to the providers.
func WithMaxHistory(n int) Option {
	return func(s *Service) {
		s.maxHistory = n
	}
}

// NewService wires the pipeline.
func NewService(responder Responder, categorizer Categorizer, opts ...Option) *Service {
	s := &Service{
		responder:   responder,
		categorizer: categorizer,
		prompts:     persona.Default(),
		routes:      routes.Default(),
		personality: tone.DefaultPersonality(),
		emotion:     true,
		maxHistory:  models.MaxHistoryMessages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateFundiResponse answers message for a conversation. It always returns a reply with a
// non-empty response.
func (s *Service) GenerateFundiResponse(ctx context.Context, message string, conversationID int64, previous []models.Message) models.StructuredResponse {
	return s.Respond(ctx, Request{Message: message, ConversationID: conversationID, Previous: previous})
}

// Respond runs the full pipeline for req.
func (s *Service) Respond(ctx context.Context, req Request) models.StructuredResponse {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	start := s.now()

	if safety.DetectCrisis(req.Message) {
		return s.respondToCrisis(ctx, req)
	}

	// Emotion analysis runs alongside classification; both feed the prompt.
	emotionCh := make(chan models.EmotionResult, 1)
	if s.emotion {
		go func() {
			em, err := s.responder.AnalyzeEmotion(ctx, req.Message)
			if err != nil {
				slog.Debug("Service.Respond: emotion analysis failed", "requestID", req.RequestID, "error", err)
			}
			emotionCh <- em
		}()
	} else {
		emotionCh <- models.NeutralEmotion()
	}

	category := s.categorizer.Classify(ctx, req.Message, req.PreferredCategory)
	metrics.Classifications.WithLabelValues(string(category.Category)).Inc()

	var emotion models.EmotionResult
	select {
	case emotion = <-emotionCh:
	case <-ctx.Done():
		emotion = models.NeutralEmotion()
	}
	personality := tone.ForEmotion(s.personality, emotion)

	prompt := s.prompts.BuildSystemPrompt(category.Category, req.Page, personality)
	prompt = safety.InjectDisclaimers(prompt, req.Message)

	resp := s.responder.GenerateResponse(ctx, req.Message, prompt, s.trimHistory(req.Previous))
	resp, _ = s.routes.PostProcess(resp, category.Category, req.Page)
	resp.Category = category.Category
	if resp.Response == "" {
		resp.Response = models.ApologyResponse().Response
	}

	slog.Info("Service.Respond: reply ready", "requestID", req.RequestID, "conversationID", req.ConversationID,
		"category", category.Category, "confidence", category.Confidence, "emotion", emotion.PrimaryEmotion,
		"provider", resp.Provider, "suggestions", len(resp.Suggestions), "elapsed", s.now().Sub(start))
	return resp
}

// respondToCrisis builds the fixed crisis reply. No provider is called and the message text is
// never logged or stored.
func (s *Service) respondToCrisis(ctx context.Context, req Request) models.StructuredResponse {
	crisisType := safety.ClassifyCrisis(req.Message)
	metrics.CrisisDetections.WithLabelValues(string(crisisType)).Inc()
	slog.Warn("Service.Respond: crisis detected, short-circuiting", "requestID", req.RequestID,
		"conversationID", req.ConversationID, "type", crisisType)

	event := models.CrisisEvent{
		ConversationID: req.ConversationID,
		Type:           string(crisisType),
		RequestID:      req.RequestID,
		CreatedAt:      s.now(),
	}
	if s.crisisLog != nil {
		if err := s.crisisLog.AddCrisisEvent(event); err != nil {
			slog.Error("Service.respondToCrisis: failed to record crisis event", "requestID", req.RequestID, "error", err)
		}
	}
	if s.alerter != nil {
		if err := s.alerter.Notify(ctx, event); err != nil {
			slog.Error("Service.respondToCrisis: failed to queue operator alert", "requestID", req.RequestID, "error", err)
		}
	}

	resp := safety.CrisisResponseFor(crisisType).StructuredResponse()
	resp, _ = s.routes.PostProcess(resp, models.CategoryEmergency, req.Page)
	resp.Category = models.CategoryEmergency
	resp.Provider = SafetyProvider
	return resp
}

func (s *Service) trimHistory(history []models.Message) []models.Message {
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		return history[len(history)-s.maxHistory:]
	}
	return history
}
