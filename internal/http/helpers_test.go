package http

import (
	"context"
	"time"

	"msggw/internal/model"
	"msggw/internal/webhook"
)

// ---- shared fakes for handler tests ----

type fakeMessagesRepo struct {
	byID       map[string]*model.Message
	byIdemKey  map[string]*model.Message
	byExternal map[string]*model.Message
	inserted   []model.Message
	listed     []model.Message
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{
		byID:       map[string]*model.Message{},
		byIdemKey:  map[string]*model.Message{},
		byExternal: map[string]*model.Message{},
	}
}

func (f *fakeMessagesRepo) Insert(_ context.Context, m model.Message) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeMessagesRepo) GetByID(_ context.Context, id string) (*model.Message, error) {
	return f.byID[id], nil
}

func (f *fakeMessagesRepo) GetByIdempotencyKey(_ context.Context, _ int64, key string) (*model.Message, error) {
	return f.byIdemKey[key], nil
}

func (f *fakeMessagesRepo) GetByExternalID(_ context.Context, externalID string) (*model.Message, error) {
	return f.byExternal[externalID], nil
}

func (f *fakeMessagesRepo) MarkSent(context.Context, string, string, time.Time) error { return nil }
func (f *fakeMessagesRepo) MarkFailed(context.Context, string, string) error          { return nil }
func (f *fakeMessagesRepo) MarkDelivered(context.Context, string, time.Time) error    { return nil }
func (f *fakeMessagesRepo) MarkUndelivered(context.Context, string, string) error     { return nil }

func (f *fakeMessagesRepo) ListByProject(context.Context, int64, model.MessageStatus, int, int) ([]model.Message, error) {
	return f.listed, nil
}

type fakeConnectorsRepo struct {
	rows map[string]*model.Connector // key id; project checked like the real repo
}

func (f *fakeConnectorsRepo) GetByID(_ context.Context, id string, projectID int64) (*model.Connector, error) {
	c := f.rows[id]
	if c == nil || c.ProjectID != projectID {
		return nil, nil
	}
	return c, nil
}

type fakeTemplatesRepo struct {
	rows map[string]*model.Template
}

func (f *fakeTemplatesRepo) GetByID(_ context.Context, id string, projectID int64) (*model.Template, error) {
	tpl := f.rows[id]
	if tpl == nil || tpl.ProjectID != projectID {
		return nil, nil
	}
	return tpl, nil
}

type fakeEnqueuer struct {
	enqueued []string
}

func (f *fakeEnqueuer) EnqueueDispatch(_ context.Context, messageID string) error {
	f.enqueued = append(f.enqueued, messageID)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(context.Context, model.StatusEvent) error { return nil }

func newTestReconciler() *webhook.Reconciler {
	return webhook.NewReconciler(newFakeMessagesRepo(), nopPublisher{})
}
