// Package queue is the durable dispatch queue between admission and the
// worker pool. It is a thin wrapper around asynq (Redis-backed, at-least-once)
// so admission code only sees the Enqueuer interface.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"msggw/internal/config"
)

// TypeDispatchMessage is the task type for outbound message dispatch.
const TypeDispatchMessage = "message:dispatch"

// DispatchPayload carries only the message id; the worker re-fetches
// everything else so a redelivered job never acts on stale data.
type DispatchPayload struct {
	MessageID string `json:"message_id"`
}

// Enqueuer is the admission-side surface of the queue.
type Enqueuer interface {
	EnqueueDispatch(ctx context.Context, messageID string) error
}

// RedisOpt builds the broker connection options from config.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
}

type Client struct {
	c           *asynq.Client
	maxAttempts int
	sendTimeout time.Duration
	retention   time.Duration
}

var _ Enqueuer = (*Client)(nil)

func NewClient(redisOpt asynq.RedisClientOpt, cfg config.QueueConfig) *Client {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &Client{
		c:           asynq.NewClient(redisOpt),
		maxAttempts: maxAttempts,
		sendTimeout: timeout,
		retention:   retention,
	}
}

// EnqueueDispatch persists a dispatch job for the given message. The task id
// is the message id, so re-enqueueing an already-queued message collapses
// into the existing job instead of duplicating it.
func (c *Client) EnqueueDispatch(ctx context.Context, messageID string) error {
	payload, err := json.Marshal(DispatchPayload{MessageID: messageID})
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}

	task := asynq.NewTask(TypeDispatchMessage, payload)
	_, err = c.c.EnqueueContext(ctx, task,
		asynq.TaskID(messageID),
		asynq.MaxRetry(c.maxAttempts-1),
		asynq.Timeout(c.sendTimeout*2),
		asynq.Retention(c.retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// already queued (or retained after completion); treat as success
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue dispatch for %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) Close() error { return c.c.Close() }

// NewServer builds the consumer side: bounded concurrency and exponential
// backoff (base delay doubling per retry, capped).
func NewServer(redisOpt asynq.RedisClientOpt, cfg config.QueueConfig, log *zap.Logger) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = 2 * time.Second
	}
	cap := cfg.RetryCap
	if cap <= 0 {
		cap = time.Minute
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    concurrency,
		RetryDelayFunc: backoff(base, cap),
		Logger:         zapAdapter{log.Sugar()},
	})
}

func backoff(base, cap time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		d := base << uint(n)
		if d > cap || d <= 0 {
			return cap
		}
		return d
	}
}

// zapAdapter satisfies asynq.Logger.
type zapAdapter struct {
	l *zap.SugaredLogger
}

func (a zapAdapter) Debug(args ...any) { a.l.Debug(args...) }
func (a zapAdapter) Info(args ...any)  { a.l.Info(args...) }
func (a zapAdapter) Warn(args ...any)  { a.l.Warn(args...) }
func (a zapAdapter) Error(args ...any) { a.l.Error(args...) }
func (a zapAdapter) Fatal(args ...any) { a.l.Fatal(args...) }
