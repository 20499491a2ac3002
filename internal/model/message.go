package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MessageStatus string

const (
	StatusQueued      MessageStatus = "queued"
	StatusSent        MessageStatus = "sent"
	StatusDelivered   MessageStatus = "delivered"
	StatusFailed      MessageStatus = "failed"
	StatusUndelivered MessageStatus = "undelivered"
)

func (s MessageStatus) String() string {
	return string(s)
}

func (s MessageStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusDelivered, StatusFailed, StatusUndelivered:
		return true
	}
	return false
}

// Terminal reports whether no writer may move the message further.
// Webhooks can still move sent; delivered and undelivered are final.
func (s MessageStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusUndelivered
}

// CanTransition enumerates the legal status moves. failed -> sent is allowed
// because a queue retry re-runs the full dispatch and may succeed after a
// transient provider failure.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	switch s {
	case StatusQueued:
		return to == StatusSent || to == StatusFailed
	case StatusSent:
		return to == StatusDelivered || to == StatusFailed || to == StatusUndelivered
	case StatusFailed:
		return to == StatusSent || to == StatusDelivered
	default:
		return false
	}
}

// Variables is the template interpolation map, stored as a JSON column.
type Variables map[string]string

func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Variables) Scan(src any) error {
	var data []byte
	switch t := src.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	case nil:
		*v = nil
		return nil
	default:
		return fmt.Errorf("variables: unsupported scan type %T", src)
	}
	if len(data) == 0 {
		*v = nil
		return nil
	}
	return json.Unmarshal(data, v)
}

// Message is the DB entity persisted in the messages table.
type Message struct {
	ID                string        `db:"id" json:"id"`
	ProjectID         int64         `db:"project_id" json:"project_id"`
	ConnectorID       string        `db:"connector_id" json:"connector_id"`
	TemplateID        string        `db:"template_id" json:"template_id"`
	Recipient         string        `db:"recipient" json:"recipient"`
	Variables         Variables     `db:"variables" json:"variables"`
	IdempotencyKey    *string       `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Status            MessageStatus `db:"status" json:"status"`
	ExternalMessageID *string       `db:"external_message_id" json:"external_message_id,omitempty"`
	Error             *string       `db:"error" json:"error,omitempty"`
	SentAt            *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time    `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}
