// Package dispatcher is the dispatch worker: it consumes queue jobs, loads
// the message and its connector configuration, renders the template, invokes
// the provider connector, and records the outcome.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"msggw/internal/connector"
	"msggw/internal/events"
	"msggw/internal/metrics"
	"msggw/internal/model"
	"msggw/internal/queue"
	"msggw/internal/repository"
	"msggw/internal/template"
	"msggw/internal/vault"
)

var errBreakerOpen = errors.New("provider circuit open")

type Config struct {
	SendTimeout  time.Duration // per provider call
	SendRPS      int           // provider-facing ceiling across the pool
	SendBurst    int
	BreakerFails int
	BreakerOpen  time.Duration
}

type Dispatcher struct {
	msgs       repository.MessagesRepository
	connectors repository.ConnectorsRepository
	templates  repository.TemplatesRepository
	attempts   repository.AttemptsRepository // optional audit log
	vault      vault.Decrypter
	factory    *connector.Registry
	events     events.Publisher
	limiter    *rate.Limiter
	breakers   *breakerSet
	timeout    time.Duration
	log        *zap.Logger
}

func New(
	msgs repository.MessagesRepository,
	connectors repository.ConnectorsRepository,
	templates repository.TemplatesRepository,
	attempts repository.AttemptsRepository,
	dec vault.Decrypter,
	factory *connector.Registry,
	pub events.Publisher,
	cfg Config,
	log *zap.Logger,
) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.SendRPS <= 0 {
		cfg.SendRPS = 10
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = cfg.SendRPS
	}
	if pub == nil {
		pub = events.Nop{}
	}

	return &Dispatcher{
		msgs:       msgs,
		connectors: connectors,
		templates:  templates,
		attempts:   attempts,
		vault:      dec,
		factory:    factory,
		events:     pub,
		limiter:    rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst),
		breakers:   newBreakerSet(cfg.BreakerFails, cfg.BreakerOpen),
		timeout:    cfg.SendTimeout,
		log:        log,
	}
}

// Register attaches the dispatch handler to the queue mux.
func (d *Dispatcher) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeDispatchMessage, d.HandleDispatch)
}

// HandleDispatch processes one dispatch job. Returning a plain error makes
// the queue retry with backoff; wrapping asynq.SkipRetry marks the job
// failed immediately for conditions a retry cannot fix.
func (d *Dispatcher) HandleDispatch(ctx context.Context, t *asynq.Task) error {
	var p queue.DispatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.MessageID == "" {
		d.log.Error("dispatch: malformed payload", zap.Error(err))
		return fmt.Errorf("malformed dispatch payload: %w", asynq.SkipRetry)
	}
	log := d.log.With(zap.String("message_id", p.MessageID))

	msg, err := d.msgs.GetByID(ctx, p.MessageID)
	if err != nil {
		return fmt.Errorf("load message %s: %w", p.MessageID, err)
	}
	if msg == nil {
		// should not happen: admission inserts before it enqueues
		log.Error("dispatch: message not found")
		return fmt.Errorf("message %s not found: %w", p.MessageID, asynq.SkipRetry)
	}

	// redelivery guard: a job retried after a successful-but-unacknowledged
	// send must not hit the provider twice
	if msg.Status == model.StatusSent || msg.Status.Terminal() {
		log.Info("dispatch: message already sent, skipping", zap.String("status", msg.Status.String()))
		return nil
	}

	conn, tpl, err := d.loadRefs(ctx, msg)
	if err != nil {
		// referential integrity was checked at admission; this is data
		// corruption, not a transient fault
		log.Error("dispatch: integrity failure", zap.Error(err))
		return d.fatal(ctx, msg, err)
	}

	creds, err := d.vault.Decrypt(conn.CredentialsEncrypted)
	if err != nil {
		log.Error("dispatch: credential decryption failed", zap.Error(err))
		return d.fatal(ctx, msg, fmt.Errorf("decrypt credentials: %w", err))
	}

	c, err := d.factory.Create(conn.Type, creds)
	if err != nil {
		log.Error("dispatch: connector construction failed", zap.Error(err))
		return d.fatal(ctx, msg, err)
	}

	body := template.Render(tpl.Body, msg.Variables)

	br := d.breakers.get(conn.ID)
	if !br.TryAcquire() {
		d.recordFailure(ctx, msg, conn.Type, errBreakerOpen.Error(), 0)
		return fmt.Errorf("connector %s: %w", conn.ID, errBreakerOpen)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		br.OnSuccess() // not a provider failure; release the probe slot
		return fmt.Errorf("rate limiter: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()
	res := c.Send(sendCtx, msg.Recipient, body)
	elapsed := time.Since(started)

	if !res.OK {
		br.OnFailure()
		log.Warn("dispatch: provider send failed",
			zap.String("provider", conn.Type.String()),
			zap.String("error", res.Error),
			zap.Duration("took", elapsed),
		)
		d.recordFailure(ctx, msg, conn.Type, res.Error, elapsed)
		return fmt.Errorf("send via %s: %s", conn.Type, res.Error)
	}

	br.OnSuccess()
	sentAt := time.Now()
	if err := d.msgs.MarkSent(ctx, msg.ID, res.ExternalID, sentAt); err != nil {
		// provider accepted the message; surface the DB failure so the
		// retry hits the redelivery guard instead of re-sending
		return fmt.Errorf("mark sent %s: %w", msg.ID, err)
	}

	metrics.MessagesTotal.WithLabelValues("sent", conn.Type.String()).Inc()
	d.recordAttempt(ctx, msg, conn.Type, "sent", "", elapsed)
	d.publish(ctx, msg, model.StatusSent, res.ExternalID)

	log.Info("dispatch: sent",
		zap.String("provider", conn.Type.String()),
		zap.String("external_id", res.ExternalID),
		zap.Duration("took", elapsed),
	)
	return nil
}

func (d *Dispatcher) loadRefs(ctx context.Context, msg *model.Message) (*model.Connector, *model.Template, error) {
	conn, err := d.connectors.GetByID(ctx, msg.ConnectorID, msg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load connector %s: %w", msg.ConnectorID, err)
	}
	if conn == nil {
		return nil, nil, fmt.Errorf("connector %s vanished from project %d", msg.ConnectorID, msg.ProjectID)
	}

	tpl, err := d.templates.GetByID(ctx, msg.TemplateID, msg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load template %s: %w", msg.TemplateID, err)
	}
	if tpl == nil {
		return nil, nil, fmt.Errorf("template %s vanished from project %d", msg.TemplateID, msg.ProjectID)
	}

	return conn, tpl, nil
}

// fatal marks the message failed and stops queue retries: the condition
// (bad ciphertext, unsupported provider, vanished references) will not heal.
func (d *Dispatcher) fatal(ctx context.Context, msg *model.Message, cause error) error {
	if err := d.msgs.MarkFailed(ctx, msg.ID, cause.Error()); err != nil {
		d.log.Error("dispatch: mark failed errored", zap.String("message_id", msg.ID), zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues("failed", "").Inc()
	d.publish(ctx, msg, model.StatusFailed, "")
	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}

func (d *Dispatcher) recordFailure(ctx context.Context, msg *model.Message, provider model.ProviderType, errMsg string, took time.Duration) {
	if err := d.msgs.MarkFailed(ctx, msg.ID, errMsg); err != nil {
		d.log.Error("dispatch: mark failed errored", zap.String("message_id", msg.ID), zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues("failed", provider.String()).Inc()
	d.recordAttempt(ctx, msg, provider, "failed", errMsg, took)
	d.publish(ctx, msg, model.StatusFailed, "")
}

func (d *Dispatcher) recordAttempt(ctx context.Context, msg *model.Message, provider model.ProviderType, status, errMsg string, took time.Duration) {
	if d.attempts == nil {
		return
	}
	attempt := 1
	if n, ok := asynq.GetRetryCount(ctx); ok {
		attempt = n + 1
	}
	a := model.DeliveryAttempt{
		MessageID:  msg.ID,
		Attempt:    attempt,
		Provider:   provider,
		Status:     status,
		Error:      errMsg,
		DurationMs: took.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if err := d.attempts.Insert(ctx, a); err != nil {
		// audit only; never fail the job over it
		d.log.Warn("dispatch: attempt audit insert failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (d *Dispatcher) publish(ctx context.Context, msg *model.Message, status model.MessageStatus, externalID string) {
	ev := model.StatusEvent{
		MessageID:         msg.ID,
		ProjectID:         msg.ProjectID,
		Status:            status,
		ExternalMessageID: externalID,
		Source:            model.EventSourceWorker,
		OccurredAt:        time.Now(),
	}
	if err := d.events.PublishStatus(ctx, ev); err != nil {
		d.log.Warn("dispatch: status event publish failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}
