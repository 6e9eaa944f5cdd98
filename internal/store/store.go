// Package store provides storage backends for Fundi.
//
// It persists conversation transcripts, the crisis audit log, provider statistics snapshots and
// the outbox used to deliver operator alerts. An in-memory store is used when no DSN is set.
package store

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundamenta/fundi/internal/models"
)

// ErrDSNNotSet is returned when a persistent store is created without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// Store is the persistence surface used by the Fundi service and API.
type Store interface {
	AddMessage(m models.StoredMessage) error
	// GetMessages returns the last limit messages of a conversation in chronological order.
	// A limit of zero returns the whole transcript.
	GetMessages(conversationID int64, limit int) ([]models.StoredMessage, error)
	AddCrisisEvent(e models.CrisisEvent) error
	GetCrisisEvents(limit int) ([]models.CrisisEvent, error)
	SaveProviderStats(records []models.ProviderStatsRecord) error
	GetProviderStats(limit int) ([]models.ProviderStatsRecord, error)
	Close() error
}

// Backend is a Store that also holds the alert outbox.
type Backend interface {
	Store
	OutboxRepo
}

// Open picks a backend for dsn: in-memory when empty, otherwise Postgres or SQLite depending on
// DetectDSNType.
func Open(dsn string) (Backend, error) {
	if strings.TrimSpace(dsn) == "" {
		slog.Info("store.Open: no DSN set, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case DSNTypePostgres:
		slog.Info("store.Open: using Postgres store")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Info("store.Open: using SQLite store", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// Opts holds configuration for persistent stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DSNType names the backend a DSN refers to.
type DSNType string

const (
	DSNTypeSQLite   DSNType = "sqlite3"
	DSNTypePostgres DSNType = "postgres"
)

// DetectDSNType guesses the backend from a DSN: postgres URLs and key=value strings are Postgres,
// anything else is treated as an SQLite file path.
func DetectDSNType(dsn string) DSNType {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// InMemoryStore is a simple in-memory store. It implements Store and OutboxRepo.
type InMemoryStore struct {
	mu       sync.Mutex
	messages map[int64][]models.StoredMessage
	crises   []models.CrisisEvent
	stats    []models.ProviderStatsRecord
	outbox   []OutboxMessage
}

var (
	_ Store      = (*InMemoryStore)(nil)
	_ OutboxRepo = (*InMemoryStore)(nil)
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{messages: make(map[int64][]models.StoredMessage)}
}

func (s *InMemoryStore) AddMessage(m models.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return nil
}

func (s *InMemoryStore) GetMessages(conversationID int64, limit int) ([]models.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.StoredMessage, len(all))
	copy(out, all)
	return out, nil
}

func (s *InMemoryStore) AddCrisisEvent(e models.CrisisEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.ID = int64(len(s.crises) + 1)
	s.crises = append(s.crises, e)
	return nil
}

// GetCrisisEvents returns the most recent events first.
func (s *InMemoryStore) GetCrisisEvents(limit int) ([]models.CrisisEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CrisisEvent, 0, len(s.crises))
	for i := len(s.crises) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.crises[i])
	}
	return out, nil
}

func (s *InMemoryStore) SaveProviderStats(records []models.ProviderStatsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, records...)
	return nil
}

// GetProviderStats returns the most recent records first.
func (s *InMemoryStore) GetProviderStats(limit int) ([]models.ProviderStatsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ProviderStatsRecord, len(s.stats))
	copy(out, s.stats)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(recipient, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusCanceled {
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	m := OutboxMessage{
		ID:          newOutboxID(),
		Recipient:   recipient,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.outbox = append(s.outbox, m)
	return m.ID, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []OutboxMessage
	for i := range s.outbox {
		if limit > 0 && len(claimed) == limit {
			break
		}
		m := &s.outbox[i]
		if m.Status != OutboxStatusQueued || (m.NextAttemptAt != nil && m.NextAttemptAt.After(now)) {
			continue
		}
		locked := now
		m.Status = OutboxStatusSending
		m.LockedAt = &locked
		m.UpdatedAt = now
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
	})
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		next := nextAttemptAt
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &next
		m.LockedAt = nil
		if m.Attempts >= MaxOutboxAttempts {
			m.Status = OutboxStatusFailed
		} else {
			m.Status = OutboxStatusQueued
		}
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.outbox {
		m := &s.outbox[i]
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			n++
		}
	}
	return n, nil
}

// OutboxMessages returns a copy of every outbox message.
func (s *InMemoryStore) OutboxMessages() []OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OutboxMessage, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *InMemoryStore) updateOutbox(id string, fn func(*OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			s.outbox[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrOutboxMessageNotFound
}

func newOutboxID() string {
	return "alert_" + uuid.NewString()
}
