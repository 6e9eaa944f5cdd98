package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fundamenta/fundi/internal/models"
	"github.com/fundamenta/fundi/internal/store"
)

// KindCrisisAlert is the outbox kind used for crisis alerts.
const KindCrisisAlert = "crisis_alert"

// Notifier queues crisis alerts for every configured operator number.
type Notifier struct {
	outbox     store.OutboxRepo
	recipients []string
}

// NewNotifier returns a Notifier. Empty recipients are ignored; with none left, Notify is a no-op.
func NewNotifier(outbox store.OutboxRepo, recipients ...string) *Notifier {
	var rs []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			rs = append(rs, r)
		}
	}
	return &Notifier{outbox: outbox, recipients: rs}
}

// ParseRecipients splits a comma separated list of phone numbers.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Enabled reports whether any recipient is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.recipients) > 0
}

type crisisPayload struct {
	Type           string    `json:"type"`
	ConversationID int64     `json:"conversationId"`
	RequestID      string    `json:"requestId,omitempty"`
	At             time.Time `json:"at"`
}

// Notify queues one alert per recipient. Alerts for the same request are deduplicated.
func (n *Notifier) Notify(ctx context.Context, event models.CrisisEvent) error {
	if !n.Enabled() {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(crisisPayload{
		Type:           event.Type,
		ConversationID: event.ConversationID,
		RequestID:      event.RequestID,
		At:             event.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal crisis alert: %w", err)
	}
	for _, to := range n.recipients {
		dedupe := ""
		if event.RequestID != "" {
			dedupe = fmt.Sprintf("crisis:%s:%s", event.RequestID, to)
		}
		id, err := n.outbox.EnqueueOutboxMessage(to, KindCrisisAlert, string(payload), dedupe)
		if err != nil {
			return fmt.Errorf("enqueue crisis alert: %w", err)
		}
		slog.Debug("Notifier.Notify: crisis alert queued", "id", id, "type", event.Type)
	}
	return nil
}

// FormatCrisisAlert renders the SMS body for a crisis payload.
func FormatCrisisAlert(payloadJSON string) string {
	p := gjson.Parse(payloadJSON)
	typ := p.Get("type").String()
	if typ == "" {
		typ = "unknown"
	}
	return fmt.Sprintf("Fundi crisis alert: %s risk detected in conversation %d at %s. The user was shown crisis resources.",
		typ, p.Get("conversationId").Int(), p.Get("at").String())
}

// SendFunc adapts sender to the outbox sender callback.
func SendFunc(sender SMSSender) store.OutboxSendFunc {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		switch msg.Kind {
		case KindCrisisAlert:
			return sender.SendSMS(ctx, msg.Recipient, FormatCrisisAlert(msg.PayloadJSON))
		default:
			return fmt.Errorf("unknown outbox kind %q", msg.Kind)
		}
	}
}
