package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fundamenta/fundi/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store      = (*SQLiteStore)(nil)
	_ OutboxRepo = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; its directory is created
// if needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// One writer avoids "database is locked" under concurrent chat requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// AddMessage appends a message, creating the conversation row on first use.
func (s *SQLiteStore) AddMessage(m models.StoredMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		m.ConversationID, m.CreatedAt, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMessage conversation upsert failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to upsert conversation %d: %w", m.ConversationID, err)
	}
	_, err = tx.Exec(`INSERT INTO messages (conversation_id, role, content, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ConversationID, m.Role, m.Content, nilIfEmpty(m.Category), m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for conversation %d: %w", m.ConversationID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "conversationID", m.ConversationID, "role", m.Role)
	return nil
}

func (s *SQLiteStore) GetMessages(conversationID int64, limit int) ([]models.StoredMessage, error) {
	rows, err := s.db.Query(`SELECT conversation_id, role, content, category, created_at FROM messages
		WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`, conversationID, sqliteLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	slog.Debug("SQLiteStore GetMessages succeeded", "conversationID", conversationID, "count", len(msgs))
	return msgs, nil
}

func (s *SQLiteStore) AddCrisisEvent(e models.CrisisEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO crisis_events (conversation_id, crisis_type, request_id, created_at) VALUES (?, ?, ?, ?)`,
		e.ConversationID, e.Type, nilIfEmpty(e.RequestID), e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddCrisisEvent failed", "error", err, "type", e.Type)
		return fmt.Errorf("failed to insert crisis event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCrisisEvents(limit int) ([]models.CrisisEvent, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, crisis_type, request_id, created_at FROM crisis_events
		ORDER BY id DESC LIMIT ?`, sqliteLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore GetCrisisEvents query failed", "error", err)
		return nil, fmt.Errorf("failed to query crisis events: %w", err)
	}
	defer rows.Close()
	return scanCrisisEvents(rows)
}

func (s *SQLiteStore) SaveProviderStats(records []models.ProviderStatsRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, r := range records {
		_, err := tx.Exec(`INSERT INTO provider_stats (provider, calls, failures, wins, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			r.Provider, r.Calls, r.Failures, r.Wins, r.RecordedAt)
		if err != nil {
			slog.Error("SQLiteStore SaveProviderStats failed", "error", err, "provider", r.Provider)
			return fmt.Errorf("failed to insert provider stats for %s: %w", r.Provider, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provider stats: %w", err)
	}
	slog.Debug("SQLiteStore SaveProviderStats succeeded", "count", len(records))
	return nil
}

func (s *SQLiteStore) GetProviderStats(limit int) ([]models.ProviderStatsRecord, error) {
	rows, err := s.db.Query(`SELECT provider, calls, failures, wins, recorded_at FROM provider_stats
		ORDER BY recorded_at DESC, id DESC LIMIT ?`, sqliteLimit(limit))
	if err != nil {
		slog.Error("SQLiteStore GetProviderStats query failed", "error", err)
		return nil, fmt.Errorf("failed to query provider stats: %w", err)
	}
	defer rows.Close()
	return scanProviderStats(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
