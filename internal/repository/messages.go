package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"msggw/internal/model"
)

const mysqlDuplicateEntry = 1062

// IsDuplicateEntry reports whether err is a MySQL unique-constraint
// violation. The messages table's (project_id, idempotency_key) unique index
// is the authority for admission idempotency.
func IsDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// MessagesRepository defines persistence for the messages table. All status
// updates carry a guard on the current status so no writer can move a
// message backwards (delivered never regresses to sent or queued).
type MessagesRepository interface {
	Insert(ctx context.Context, m model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	GetByIdempotencyKey(ctx context.Context, projectID int64, key string) (*model.Message, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Message, error)
	MarkSent(ctx context.Context, id, externalID string, at time.Time) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkUndelivered(ctx context.Context, id, reason string) error
	ListByProject(ctx context.Context, projectID int64, status model.MessageStatus, limit, offset int) ([]model.Message, error)
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

const messageColumns = `
	id, project_id, connector_id, template_id, recipient, variables,
	idempotency_key, status, external_message_id, error, sent_at,
	delivered_at, created_at, updated_at`

func (r *MessagesRepositoryImpl) Insert(ctx context.Context, m model.Message) error {
	const q = `
		INSERT INTO messages
		    (id, project_id, connector_id, template_id, recipient, variables,
		     idempotency_key, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, 'queued', NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.ProjectID, m.ConnectorID, m.TemplateID, m.Recipient,
		m.Variables, m.IdempotencyKey,
	)
	return err
}

func (r *MessagesRepositoryImpl) getOne(ctx context.Context, q string, args ...any) (*model.Message, error) {
	var m model.Message
	err := r.db.GetContext(ctx, &m, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessagesRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ? LIMIT 1`, id)
}

func (r *MessagesRepositoryImpl) GetByIdempotencyKey(ctx context.Context, projectID int64, key string) (*model.Message, error) {
	return r.getOne(ctx, `
		SELECT `+messageColumns+`
		  FROM messages
		 WHERE project_id = ? AND idempotency_key = ? LIMIT 1
	`, projectID, key)
}

func (r *MessagesRepositoryImpl) GetByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	return r.getOne(ctx, `
		SELECT `+messageColumns+`
		  FROM messages
		 WHERE external_message_id = ? LIMIT 1
	`, externalID)
}

// MarkSent records a successful provider call. The external id is
// write-once: a prior non-null value is never overwritten.
func (r *MessagesRepositoryImpl) MarkSent(ctx context.Context, id, externalID string, at time.Time) error {
	const q = `
		UPDATE messages
		   SET status = 'sent',
		       external_message_id = COALESCE(external_message_id, ?),
		       error = NULL,
		       sent_at = ?,
		       updated_at = NOW()
		 WHERE id = ? AND status IN ('queued', 'failed')
	`
	_, err := r.db.ExecContext(ctx, q, externalID, at, id)
	return err
}

func (r *MessagesRepositoryImpl) MarkFailed(ctx context.Context, id, errMsg string) error {
	const q = `
		UPDATE messages
		   SET status = 'failed', error = ?, updated_at = NOW()
		 WHERE id = ? AND status IN ('queued', 'sent', 'failed')
	`
	_, err := r.db.ExecContext(ctx, q, errMsg, id)
	return err
}

// MarkDelivered applies a webhook delivery confirmation. Re-applying the
// same event is harmless; delivered_at is only set once.
func (r *MessagesRepositoryImpl) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE messages
		   SET status = 'delivered',
		       delivered_at = COALESCE(delivered_at, ?),
		       updated_at = NOW()
		 WHERE id = ? AND status IN ('sent', 'failed', 'delivered')
	`
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}

func (r *MessagesRepositoryImpl) MarkUndelivered(ctx context.Context, id, reason string) error {
	const q = `
		UPDATE messages
		   SET status = 'undelivered', error = ?, updated_at = NOW()
		 WHERE id = ? AND status = 'sent'
	`
	_, err := r.db.ExecContext(ctx, q, reason, id)
	return err
}

func (r *MessagesRepositoryImpl) ListByProject(ctx context.Context, projectID int64, status model.MessageStatus, limit, offset int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE project_id = ?`
	args := []any{projectID}

	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Message
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
