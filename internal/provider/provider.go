// Package provider defines the Provider abstraction over Fundi's remote backends and the
// behaviour shared by every adapter: greeting short-circuit, local content fallback and the
// strict parse step for model output.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundamenta/fundi/internal/models"
)

// Provider is a remote backend able to answer, classify and score emotion.
type Provider interface {
	Name() string
	GenerateResponse(ctx context.Context, message, systemPrompt string, history []models.Message) (models.StructuredResponse, error)
	ClassifyCategory(ctx context.Context, message, preferredCategory string) (models.CategoryResult, error)
	AnalyzeEmotion(ctx context.Context, message string) (models.EmotionResult, error)
}

var (
	// ErrProvider matches every *Error.
	ErrProvider = errors.New("provider error")
	// ErrEmptyResponse is returned when a model produced no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Error is a failed remote operation.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProvider) true for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrProvider
}

func newError(provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Err: err}
}
