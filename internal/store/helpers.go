package store

import (
	"database/sql"
	"fmt"

	"github.com/fundamenta/fundi/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

const outboxColumns = `id, recipient, kind, payload_json, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`

func scanOutboxMessage(row rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON, dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.Recipient, &m.Kind, &payloadJSON, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.PayloadJSON = payloadJSON.String
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]models.StoredMessage, error) {
	var out []models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		var category sql.NullString
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Category = category.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return out, nil
}

// reverseMessages turns a newest-first page into chronological order.
func reverseMessages(msgs []models.StoredMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func scanCrisisEvents(rows *sql.Rows) ([]models.CrisisEvent, error) {
	var out []models.CrisisEvent
	for rows.Next() {
		var e models.CrisisEvent
		var requestID sql.NullString
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Type, &requestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan crisis event row: %w", err)
		}
		e.RequestID = requestID.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crisis event rows: %w", err)
	}
	return out, nil
}

func scanProviderStats(rows *sql.Rows) ([]models.ProviderStatsRecord, error) {
	var out []models.ProviderStatsRecord
	for rows.Next() {
		var r models.ProviderStatsRecord
		if err := rows.Scan(&r.Provider, &r.Calls, &r.Failures, &r.Wins, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider stats row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider stats rows: %w", err)
	}
	return out, nil
}

// sqliteLimit maps a non-positive limit to SQLite's unbounded LIMIT -1.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// postgresLimit maps a non-positive limit to NULL, which Postgres treats as LIMIT ALL.
func postgresLimit(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
