// Package models defines the core data structures for Fundi.
//
// It includes the conversation message and structured response types shared by the
// classifier, providers, orchestrator and API, plus the JSON envelope used by every endpoint.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for an inbound chat message
	MaxMessageLength = 4096
	// MaxHistoryMessages defines how many previous messages a chat request may carry
	MaxHistoryMessages = 50
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrTooManyMessages     = errors.New("too many previous messages")
	ErrInvalidRole         = errors.New("invalid message role")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidConversation = errors.New("conversation id must not be negative")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// ChatRequest is the payload accepted by the chat endpoint.
type ChatRequest struct {
	Message          string       `json:"message"`
	ConversationID   int64        `json:"conversationId"`
	PreviousMessages []Message    `json:"previousMessages,omitempty"`
	Category         string       `json:"category,omitempty"` // optional preferred category from the UI
	Context          *PageContext `json:"context,omitempty"`
}

// Validate performs validation on a ChatRequest.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if r.ConversationID < 0 {
		return ErrInvalidConversation
	}
	if len(r.PreviousMessages) > MaxHistoryMessages {
		return ErrTooManyMessages
	}
	for _, m := range r.PreviousMessages {
		if !IsValidRole(m.Role) {
			return ErrInvalidRole
		}
	}
	if r.Category != "" && !IsValidCategory(Category(r.Category)) {
		return ErrInvalidCategory
	}
	return nil
}

// FallbackToggleRequest is the payload for the operator fallback toggle.
type FallbackToggleRequest struct {
	Enabled bool `json:"enabled"`
}
