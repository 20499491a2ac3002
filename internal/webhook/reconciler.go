// Package webhook reconciles provider delivery reports with the messages
// table. Callbacks are advisory: every event is best-effort, anything the
// gateway cannot attribute or understand is counted and dropped, and the
// HTTP layer answers 200 regardless so providers stop redelivering.
package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"msggw/internal/events"
	"msggw/internal/logger"
	"msggw/internal/metrics"
	"msggw/internal/model"
	"msggw/internal/repository"
)

type Reconciler struct {
	messages  repository.MessagesRepository
	publisher events.Publisher
}

func NewReconciler(messages repository.MessagesRepository, publisher events.Publisher) *Reconciler {
	return &Reconciler{messages: messages, publisher: publisher}
}

// HandleEvents parses a provider callback payload and applies every
// recognized status change. A malformed payload is an error for the caller
// to log; a single bad event inside a valid payload never blocks the rest.
func (r *Reconciler) HandleEvents(ctx context.Context, provider model.ProviderType, payload []byte) error {
	parse, ok := parsers[provider]
	if !ok {
		return fmt.Errorf("unsupported webhook provider %q", provider)
	}

	evs, err := parse(payload)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(provider.String(), "malformed").Inc()
		return err
	}

	for _, ev := range evs {
		r.apply(ctx, provider, ev)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, provider model.ProviderType, ev StatusEvent) {
	msg, err := r.messages.GetByExternalID(ctx, ev.ExternalID)
	if err != nil {
		logger.Log.Error("webhook: lookup by external id failed",
			zap.String("external_id", ev.ExternalID), zap.Error(err))
		return
	}
	if msg == nil {
		// Not one of ours, or the worker has not recorded the external id
		// yet. The provider retries, so a racing report is not lost.
		metrics.WebhookEventsTotal.WithLabelValues(provider.String(), "unknown_target").Inc()
		logger.Log.Debug("webhook: no message for external id",
			zap.String("provider", provider.String()),
			zap.String("external_id", ev.ExternalID))
		return
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Status {
	case model.StatusSent:
		err = r.messages.MarkSent(ctx, msg.ID, ev.ExternalID, at)
	case model.StatusDelivered:
		err = r.messages.MarkDelivered(ctx, msg.ID, at)
	case model.StatusFailed:
		err = r.messages.MarkFailed(ctx, msg.ID, reasonOr(ev.Reason, "provider reported failure"))
	case model.StatusUndelivered:
		err = r.messages.MarkUndelivered(ctx, msg.ID, reasonOr(ev.Reason, "provider reported undelivered"))
	default:
		metrics.WebhookEventsTotal.WithLabelValues(provider.String(), "ignored").Inc()
		return
	}
	if err != nil {
		logger.Log.Error("webhook: status update failed",
			zap.String("message_id", msg.ID),
			zap.String("status", ev.Status.String()), zap.Error(err))
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(provider.String(), "applied").Inc()

	if pubErr := r.publisher.PublishStatus(ctx, model.StatusEvent{
		MessageID:         msg.ID,
		ProjectID:         msg.ProjectID,
		Status:            ev.Status,
		ExternalMessageID: ev.ExternalID,
		Source:            model.EventSourceWebhook,
		OccurredAt:        at,
	}); pubErr != nil {
		logger.Log.Warn("webhook: status event publish failed",
			zap.String("message_id", msg.ID), zap.Error(pubErr))
	}
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
