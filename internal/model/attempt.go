package model

import "time"

// DeliveryAttempt is the per-dispatch audit row persisted in ClickHouse.
type DeliveryAttempt struct {
	MessageID  string       `db:"message_id" json:"message_id"`
	Attempt    int          `db:"attempt" json:"attempt"`
	Provider   ProviderType `db:"provider" json:"provider"`
	Status     string       `db:"status" json:"status"` // sent|failed
	Error      string       `db:"error" json:"error,omitempty"`
	DurationMs int64        `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
