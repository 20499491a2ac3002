package model

import "time"

const (
	EventSourceWorker  = "worker"
	EventSourceWebhook = "webhook"
)

// StatusEvent is the payload published to the status stream on every
// message status transition.
type StatusEvent struct {
	MessageID         string        `json:"message_id"`
	ProjectID         int64         `json:"project_id"`
	Status            MessageStatus `json:"status"`
	ExternalMessageID string        `json:"external_message_id,omitempty"`
	Source            string        `json:"source"` // worker|webhook
	OccurredAt        time.Time     `json:"occurred_at"`
}
