package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"msggw/internal/model"
)

// AttemptsRepository is the ClickHouse-backed dispatch audit log. One row
// per provider call, retained by the table's TTL.
type AttemptsRepository interface {
	Insert(ctx context.Context, a model.DeliveryAttempt) error
	ListByMessage(ctx context.Context, messageID string, limit int) ([]model.DeliveryAttempt, error)
}

type attemptsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewAttemptsRepository(ch *sqlx.DB) AttemptsRepository {
	return &attemptsRepository{ch: ch}
}

func (r *attemptsRepository) Insert(ctx context.Context, a model.DeliveryAttempt) error {
	const q = `
		INSERT INTO msggw.delivery_attempts
		    (message_id, attempt, provider, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q,
		a.MessageID, a.Attempt, a.Provider.String(), a.Status, a.Error,
		a.DurationMs, a.CreatedAt,
	)
	return err
}

func (r *attemptsRepository) ListByMessage(ctx context.Context, messageID string, limit int) ([]model.DeliveryAttempt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	const q = `
		SELECT message_id, attempt, provider, status, error, duration_ms, created_at
		FROM msggw.delivery_attempts
		WHERE message_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	var rows []model.DeliveryAttempt
	if err := r.ch.SelectContext(ctx, &rows, q, messageID, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
