// Package events streams message status transitions to Kafka for downstream
// analytics consumers. The gateway itself never reads this topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"msggw/internal/model"
)

type Publisher interface {
	PublishStatus(ctx context.Context, ev model.StatusEvent) error
}

// Nop is used when the stream is disabled in config.
type Nop struct{}

func (Nop) PublishStatus(context.Context, model.StatusEvent) error { return nil }

// KafkaPublisher writes one record per status transition, keyed by message
// id so all events of a message land in one partition, in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) PublishStatus(ctx context.Context, ev model.StatusEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.MessageID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
