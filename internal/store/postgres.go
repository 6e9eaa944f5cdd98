package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/fundamenta/fundi/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var (
	_ Store      = (*PostgresStore)(nil)
	_ OutboxRepo = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddMessage(m models.StoredMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO conversations (id, created_at, updated_at) VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		m.ConversationID, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMessage conversation upsert failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to upsert conversation %d: %w", m.ConversationID, err)
	}
	_, err = tx.Exec(`INSERT INTO messages (conversation_id, role, content, category, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ConversationID, m.Role, m.Content, nilIfEmpty(m.Category), m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for conversation %d: %w", m.ConversationID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "conversationID", m.ConversationID, "role", m.Role)
	return nil
}

func (s *PostgresStore) GetMessages(conversationID int64, limit int) ([]models.StoredMessage, error) {
	rows, err := s.db.Query(`SELECT conversation_id, role, content, category, created_at FROM messages
		WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2`, conversationID, postgresLimit(limit))
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (s *PostgresStore) AddCrisisEvent(e models.CrisisEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO crisis_events (conversation_id, crisis_type, request_id, created_at) VALUES ($1, $2, $3, $4)`,
		e.ConversationID, e.Type, nilIfEmpty(e.RequestID), e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddCrisisEvent failed", "error", err, "type", e.Type)
		return fmt.Errorf("failed to insert crisis event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCrisisEvents(limit int) ([]models.CrisisEvent, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, crisis_type, request_id, created_at FROM crisis_events
		ORDER BY id DESC LIMIT $1`, postgresLimit(limit))
	if err != nil {
		slog.Error("PostgresStore GetCrisisEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query crisis events: %w", err)
	}
	defer rows.Close()
	return scanCrisisEvents(rows)
}

func (s *PostgresStore) SaveProviderStats(records []models.ProviderStatsRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, r := range records {
		_, err := tx.Exec(`INSERT INTO provider_stats (provider, calls, failures, wins, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
			r.Provider, r.Calls, r.Failures, r.Wins, r.RecordedAt)
		if err != nil {
			slog.Error("PostgresStore SaveProviderStats failed", "error", err, "provider", r.Provider)
			return fmt.Errorf("failed to insert provider stats for %s: %w", r.Provider, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetProviderStats(limit int) ([]models.ProviderStatsRecord, error) {
	rows, err := s.db.Query(`SELECT provider, calls, failures, wins, recorded_at FROM provider_stats
		ORDER BY recorded_at DESC, id DESC LIMIT $1`, postgresLimit(limit))
	if err != nil {
		slog.Error("PostgresStore GetProviderStats query failed", "error", err)
		return nil, fmt.Errorf("failed to query provider stats: %w", err)
	}
	defer rows.Close()
	return scanProviderStats(rows)
}

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

func (s *PostgresStore) EnqueueOutboxMessage(recipient, kind, payloadJSON, dedupeKey string) (string, error) {
	id := newOutboxID()
	now := time.Now()

	if dedupeKey != "" {
		var existingID string
		err := s.db.QueryRow(
			`SELECT id FROM outbox_messages WHERE dedupe_key = $1 AND status NOT IN ('sent', 'canceled')`,
			dedupeKey,
		).Scan(&existingID)
		if err == nil {
			slog.Debug("PostgresStore.EnqueueOutboxMessage: dedupe hit", "dedupeKey", dedupeKey, "existingID", existingID)
			return existingID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("outbox dedupe check failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO outbox_messages (id, recipient, kind, payload_json, status, attempts, dedupe_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'queued', 0, $5, $6, $6)`,
		id, recipient, kind, payloadJSON, nilIfEmpty(dedupeKey), now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue outbox message failed: %w", err)
	}
	slog.Debug("PostgresStore.EnqueueOutboxMessage", "id", id, "kind", kind)
	return id, nil
}

// ClaimDueOutboxMessages claims atomically with FOR UPDATE SKIP LOCKED so several instances can
// share one database.
func (s *PostgresStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	rows, err := s.db.Query(
		`UPDATE outbox_messages SET status = 'sending', locked_at = $1, updated_at = $1
		 WHERE id IN (
		   SELECT id FROM outbox_messages
		   WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		   ORDER BY created_at ASC LIMIT $2
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+outboxColumns,
		now, postgresLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("claim due outbox messages failed: %w", err)
	}
	defer rows.Close()

	var msgs []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox iteration failed: %w", err)
	}
	return msgs, nil
}

func (s *PostgresStore) MarkOutboxMessageSent(id string) error {
	res, err := s.db.Exec(
		`UPDATE outbox_messages SET status = 'sent', locked_at = NULL, updated_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox sent failed: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE outbox_messages SET
		   status = CASE WHEN attempts + 1 >= $1 THEN 'failed' ELSE 'queued' END,
		   attempts = attempts + 1, last_error = $2, next_attempt_at = $3, locked_at = NULL, updated_at = $4
		 WHERE id = $5`,
		MaxOutboxAttempts, errMsg, nextAttemptAt, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("fail outbox message failed: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	result, err := s.db.Exec(
		`UPDATE outbox_messages SET status = 'queued', locked_at = NULL, updated_at = $1 WHERE status = 'sending' AND locked_at < $2`,
		time.Now(), staleBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale outbox messages failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore.RequeueStaleSendingMessages", "requeued", n)
	}
	return int(n), nil
}
