package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundamenta/fundi/internal/models"
)

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want DSNType
	}{
		{"postgres://user:pw@localhost/fundi", DSNTypePostgres},
		{"postgresql://localhost/fundi", DSNTypePostgres},
		{"host=localhost dbname=fundi sslmode=disable", DSNTypePostgres},
		{"/var/lib/fundi/fundi.db", DSNTypeSQLite},
		{"fundi.db", DSNTypeSQLite},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpen_EmptyDSNIsInMemory(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("expected *InMemoryStore, got %T", s)
	}
}

func TestNewStores_RequireDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); !errors.Is(err, ErrDSNNotSet) {
		t.Errorf("SQLite error = %v, want ErrDSNNotSet", err)
	}
	if _, err := NewPostgresStore(); !errors.Is(err, ErrDSNNotSet) {
		t.Errorf("Postgres error = %v, want ErrDSNNotSet", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
	exerciseOutbox(t, NewInMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s := newTestSQLiteStore(t)
	exerciseStore(t, s)
}

func TestSQLiteStore_Outbox(t *testing.T) {
	s := newTestSQLiteStore(t)
	exerciseOutbox(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fundi.db")
	s1, err := NewSQLiteStore(WithSQLiteDSN(path))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s1.AddMessage(models.StoredMessage{ConversationID: 9, Role: models.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	s1.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	s2, err := NewSQLiteStore(WithSQLiteDSN(path))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	msgs, err := s2.GetMessages(9, 0)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("expected persisted message, got %+v, %v", msgs, err)
	}
}

func TestPostgresStore(t *testing.T) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("env DATABASE_URL not set")
	}
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	for _, table := range []string{"messages", "conversations", "crisis_events", "provider_stats", "outbox_messages"} {
		pgStore.db.Exec("DELETE FROM " + table)
	}
	exerciseStore(t, pgStore)
	exerciseOutbox(t, pgStore)
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "fundi.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	turns := []models.StoredMessage{
		{ConversationID: 1, Role: models.RoleUser, Content: "How do I budget?", Category: "finance", CreatedAt: base},
		{ConversationID: 1, Role: models.RoleAssistant, Content: "Start with the 50/30/20 rule.", CreatedAt: base.Add(time.Second)},
		{ConversationID: 2, Role: models.RoleUser, Content: "other conversation", CreatedAt: base},
		{ConversationID: 1, Role: models.RoleUser, Content: "Thanks!", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, m := range turns {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	all, err := s.GetMessages(1, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(all) != 3 || all[0].Content != "How do I budget?" || all[2].Content != "Thanks!" {
		t.Fatalf("unexpected transcript %+v", all)
	}
	if all[0].Category != "finance" || all[1].Category != "" {
		t.Errorf("category not round-tripped: %+v", all)
	}

	last, err := s.GetMessages(1, 2)
	if err != nil {
		t.Fatalf("GetMessages with limit failed: %v", err)
	}
	if len(last) != 2 || last[0].Role != models.RoleAssistant || last[1].Content != "Thanks!" {
		t.Errorf("limit should keep the newest messages in order, got %+v", last)
	}

	if empty, err := s.GetMessages(404, 0); err != nil || len(empty) != 0 {
		t.Errorf("expected empty transcript, got %+v, %v", empty, err)
	}

	for _, typ := range []string{"suicide", "substance"} {
		if err := s.AddCrisisEvent(models.CrisisEvent{ConversationID: 1, Type: typ, RequestID: "req-" + typ}); err != nil {
			t.Fatalf("AddCrisisEvent failed: %v", err)
		}
	}
	events, err := s.GetCrisisEvents(1)
	if err != nil {
		t.Fatalf("GetCrisisEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != "substance" || events[0].RequestID != "req-substance" {
		t.Errorf("expected newest crisis event first, got %+v", events)
	}

	records := []models.ProviderStatsRecord{
		{Provider: "openai", Calls: 10, Failures: 1, Wins: 9, RecordedAt: base},
		{Provider: "huggingface", Calls: 3, Failures: 0, Wins: 1, RecordedAt: base},
	}
	if err := s.SaveProviderStats(records); err != nil {
		t.Fatalf("SaveProviderStats failed: %v", err)
	}
	later := []models.ProviderStatsRecord{{Provider: "openai", Calls: 12, Failures: 1, Wins: 11, RecordedAt: base.Add(time.Hour)}}
	if err := s.SaveProviderStats(later); err != nil {
		t.Fatalf("SaveProviderStats failed: %v", err)
	}
	stats, err := s.GetProviderStats(0)
	if err != nil {
		t.Fatalf("GetProviderStats failed: %v", err)
	}
	if len(stats) != 3 || stats[0].Calls != 12 {
		t.Errorf("expected newest snapshot first, got %+v", stats)
	}
}

func exerciseOutbox(t *testing.T, repo OutboxRepo) {
	t.Helper()
	id, err := repo.EnqueueOutboxMessage("+15550100", "crisis_alert", `{"type":"suicide"}`, "crisis:1")
	if err != nil {
		t.Fatalf("EnqueueOutboxMessage failed: %v", err)
	}
	dup, err := repo.EnqueueOutboxMessage("+15550100", "crisis_alert", `{"type":"suicide"}`, "crisis:1")
	if err != nil || dup != id {
		t.Fatalf("dedupe should return existing id %q, got %q, %v", id, dup, err)
	}

	now := time.Now()
	claimed, err := repo.ClaimDueOutboxMessages(now, 10)
	if err != nil {
		t.Fatalf("ClaimDueOutboxMessages failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != id || claimed[0].Status != OutboxStatusSending {
		t.Fatalf("unexpected claim %+v", claimed)
	}
	if again, _ := repo.ClaimDueOutboxMessages(now, 10); len(again) != 0 {
		t.Errorf("claimed message should not be claimed twice, got %+v", again)
	}

	if err := repo.FailOutboxMessage(id, "twilio down", now.Add(time.Hour)); err != nil {
		t.Fatalf("FailOutboxMessage failed: %v", err)
	}
	if due, _ := repo.ClaimDueOutboxMessages(now, 10); len(due) != 0 {
		t.Errorf("retry is not due yet, got %+v", due)
	}
	retry, err := repo.ClaimDueOutboxMessages(now.Add(2*time.Hour), 10)
	if err != nil || len(retry) != 1 || retry[0].Attempts != 1 || retry[0].LastError != "twilio down" {
		t.Fatalf("expected one retry with attempt count, got %+v, %v", retry, err)
	}

	if err := repo.MarkOutboxMessageSent(id); err != nil {
		t.Fatalf("MarkOutboxMessageSent failed: %v", err)
	}
	fresh, err := repo.EnqueueOutboxMessage("+15550100", "crisis_alert", `{}`, "crisis:1")
	if err != nil || fresh == id {
		t.Errorf("a sent message should not block a new one with the same key, got %q, %v", fresh, err)
	}

	if err := repo.MarkOutboxMessageSent("missing"); !errors.Is(err, ErrOutboxMessageNotFound) {
		t.Errorf("error = %v, want ErrOutboxMessageNotFound", err)
	}
}

func TestOutboxSender_Poll(t *testing.T) {
	s := NewInMemoryStore()
	okID, _ := s.EnqueueOutboxMessage("+1", "crisis_alert", `{}`, "")
	badID, _ := s.EnqueueOutboxMessage("+2", "crisis_alert", `{}`, "")

	sender := NewOutboxSender(s, func(ctx context.Context, msg OutboxMessage) error {
		if msg.Recipient == "+2" {
			return errors.New("undeliverable")
		}
		return nil
	}, time.Second)
	sender.Poll(context.Background())

	status := map[string]OutboxMessage{}
	for _, m := range s.OutboxMessages() {
		status[m.ID] = m
	}
	if status[okID].Status != OutboxStatusSent {
		t.Errorf("ok message status = %q, want sent", status[okID].Status)
	}
	bad := status[badID]
	if bad.Status != OutboxStatusQueued || bad.Attempts != 1 || bad.NextAttemptAt == nil {
		t.Errorf("failed message should be requeued with backoff, got %+v", bad)
	}
}

func TestOutboxSender_GivesUpAfterMaxAttempts(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.EnqueueOutboxMessage("+1", "crisis_alert", `{}`, "")
	for i := 0; i < MaxOutboxAttempts; i++ {
		if err := s.FailOutboxMessage(id, "nope", time.Now()); err != nil {
			t.Fatalf("FailOutboxMessage failed: %v", err)
		}
	}
	if got := s.OutboxMessages()[0].Status; got != OutboxStatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
}

func TestOutboxSender_RecoverStaleMessages(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.EnqueueOutboxMessage("+1", "crisis_alert", `{}`, "")
	if _, err := s.ClaimDueOutboxMessages(time.Now().Add(-time.Hour), 1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	sender := NewOutboxSender(s, func(context.Context, OutboxMessage) error { return nil }, 0)
	if err := sender.RecoverStaleMessages(); err != nil {
		t.Fatalf("RecoverStaleMessages failed: %v", err)
	}
	if m := s.OutboxMessages()[0]; m.ID != id || m.Status != OutboxStatusQueued {
		t.Errorf("stale message not requeued: %+v", m)
	}
}
