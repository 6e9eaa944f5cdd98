package models

import "time"

// CrisisEvent is the audit record of a crisis short-circuit. The message text is never stored.
type CrisisEvent struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Type           string    `json:"type"`
	RequestID      string    `json:"requestId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ProviderStatsRecord is one provider's counters at a point in time.
type ProviderStatsRecord struct {
	Provider   string    `json:"provider"`
	Calls      int64     `json:"calls"`
	Failures   int64     `json:"failures"`
	Wins       int64     `json:"wins"`
	RecordedAt time.Time `json:"recordedAt"`
}
