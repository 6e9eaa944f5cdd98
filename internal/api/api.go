// Package api serves the Fundi assistant over HTTP.
//
// It exposes the chat endpoint used by the Fundamenta web client, the stored conversation
// transcript, operator controls for the provider orchestrator, a liveness probe and the
// Prometheus exposition endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundamenta/fundi/internal/fundi"
	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/orchestrator"
	"github.com/fundamenta/fundi/internal/store"
)

// Default configuration constants
const (
	// DefaultServerAddress is the default listen address.
	DefaultServerAddress = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultChatTimeout bounds a single chat request end to end.
	DefaultChatTimeout = 60 * time.Second
	// MaxRequestBodyBytes caps decoded request bodies.
	MaxRequestBodyBytes = 1 << 20
)

// chatService answers chat turns. *fundi.Service implements it.
type chatService interface {
	Respond(ctx context.Context, req fundi.Request) models.StructuredResponse
}

// operator exposes the orchestrator controls. *orchestrator.Orchestrator implements it.
type operator interface {
	Status() orchestrator.Status
	SetForcedFallback(enabled bool)
	Reset()
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	JWTSecret   string
	ChatTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithJWTSecret enables HS256 bearer token checks on chat and operator endpoints.
func WithJWTSecret(secret string) Option {
	return func(o *Opts) {
		o.JWTSecret = secret
	}
}

// WithChatTimeout bounds a single chat request.
func WithChatTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ChatTimeout = d
	}
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	chat        chatService
	ops         operator
	st          store.Store
	addr        string
	jwtSecret   []byte
	chatTimeout time.Duration
	now         func() time.Time
}

// NewServer builds a Server. st may be nil, in which case nothing is persisted and conversation
// history must be sent by the client.
func NewServer(chat chatService, ops operator, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultServerAddress, ChatTimeout: DefaultChatTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultServerAddress
	}
	s := &Server{
		chat:        chat,
		ops:         ops,
		st:          st,
		addr:        cfg.Addr,
		chatTimeout: cfg.ChatTimeout,
		now:         time.Now,
	}
	if cfg.JWTSecret != "" {
		s.jwtSecret = []byte(cfg.JWTSecret)
	}
	slog.Debug("api.NewServer: configured", "addr", s.addr, "auth", len(s.jwtSecret) > 0, "persistence", st != nil)
	return s
}

// Handler returns the routed handler with request IDs and metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "/fundi/chat", s.chatHandler, true)
	s.route(mux, "/fundi/conversations/{id}/messages", s.messagesHandler, true)
	s.route(mux, "/fundi/status", s.statusHandler, true)
	s.route(mux, "/fundi/fallback", s.fallbackHandler, true)
	s.route(mux, "/fundi/reset", s.resetHandler, true)
	s.route(mux, "/health", s.healthHandler, false)
	mux.Handle("/metrics", promhttp.Handler())
	return withRequestID(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, auth bool) {
	var handler http.Handler = h
	if auth {
		handler = s.requireAuth(handler)
	}
	mux.Handle(pattern, withMetrics(pattern, handler))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Fundi API running", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down", "timeout", DefaultShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server.Run: stopped")
	return nil
}
