// Package admission implements the request-to-queue path: idempotency
// resolution, project-scoped referential checks, the queued message insert,
// and the dispatch job enqueue.
package admission

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"msggw/internal/metrics"
	"msggw/internal/model"
	"msggw/internal/queue"
	"msggw/internal/repository"
	"msggw/internal/util"
)

var (
	ErrConnectorNotFound = errors.New("connector not found")
	ErrTemplateNotFound  = errors.New("template not found")
)

type AdmitRequest struct {
	ProjectID      int64
	ConnectorID    string
	TemplateID     string
	Recipient      string
	Variables      model.Variables
	IdempotencyKey string // optional
}

type Service struct {
	msgs       repository.MessagesRepository
	connectors repository.ConnectorsRepository
	templates  repository.TemplatesRepository
	jobs       queue.Enqueuer
}

func New(
	msgs repository.MessagesRepository,
	connectors repository.ConnectorsRepository,
	templates repository.TemplatesRepository,
	jobs queue.Enqueuer,
) *Service {
	return &Service{
		msgs:       msgs,
		connectors: connectors,
		templates:  templates,
		jobs:       jobs,
	}
}

// Admit validates and queues one outbound message. Replays carrying a known
// idempotency key return the original message untouched: nothing is
// re-validated, re-enqueued, or mutated. The messages table's unique index
// on (project_id, idempotency_key) is the authority when two first-time
// requests race; the loser re-reads the winner's row.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*model.Message, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.msgs.GetByIdempotencyKey(ctx, req.ProjectID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	// Both references must exist inside the caller's project. Resolved
	// concurrently; each lookup is independent.
	var conn *model.Connector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.connectors.GetByID(gctx, req.ConnectorID, req.ProjectID)
		if err != nil {
			return fmt.Errorf("resolve connector: %w", err)
		}
		if c == nil {
			return ErrConnectorNotFound
		}
		conn = c
		return nil
	})
	g.Go(func() error {
		t, err := s.templates.GetByID(gctx, req.TemplateID, req.ProjectID)
		if err != nil {
			return fmt.Errorf("resolve template: %w", err)
		}
		if t == nil {
			return ErrTemplateNotFound
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	msg := model.Message{
		ID:          util.NewMessageID(),
		ProjectID:   req.ProjectID,
		ConnectorID: req.ConnectorID,
		TemplateID:  req.TemplateID,
		Recipient:   req.Recipient,
		Variables:   req.Variables,
		Status:      model.StatusQueued,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		msg.IdempotencyKey = &key
	}

	if err := s.msgs.Insert(ctx, msg); err != nil {
		if repository.IsDuplicateEntry(err) && req.IdempotencyKey != "" {
			existing, rerr := s.msgs.GetByIdempotencyKey(ctx, req.ProjectID, req.IdempotencyKey)
			if rerr != nil {
				return nil, fmt.Errorf("re-read after idempotency conflict: %w", rerr)
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// Enqueue failure after a successful insert leaves an orphan queued row;
	// accepted as a rare failure mode recovered out of band.
	if err := s.jobs.EnqueueDispatch(ctx, msg.ID); err != nil {
		return nil, fmt.Errorf("enqueue dispatch: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("queued", conn.Type.String()).Inc()

	return &msg, nil
}
