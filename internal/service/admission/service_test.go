package admission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msggw/internal/model"
)

type fakeMessages struct {
	byKey    map[string]*model.Message // projectID+"/"+key
	inserted []model.Message
	failNext error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{byKey: map[string]*model.Message{}}
}

func (f *fakeMessages) Insert(_ context.Context, m model.Message) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.inserted = append(f.inserted, m)
	if m.IdempotencyKey != nil {
		f.byKey[keyOf(m.ProjectID, *m.IdempotencyKey)] = &m
	}
	return nil
}

func (f *fakeMessages) GetByID(context.Context, string) (*model.Message, error) { return nil, nil }

func (f *fakeMessages) GetByIdempotencyKey(_ context.Context, projectID int64, key string) (*model.Message, error) {
	return f.byKey[keyOf(projectID, key)], nil
}

func (f *fakeMessages) GetByExternalID(context.Context, string) (*model.Message, error) {
	return nil, nil
}
func (f *fakeMessages) MarkSent(context.Context, string, string, time.Time) error { return nil }
func (f *fakeMessages) MarkFailed(context.Context, string, string) error          { return nil }
func (f *fakeMessages) MarkDelivered(context.Context, string, time.Time) error    { return nil }
func (f *fakeMessages) MarkUndelivered(context.Context, string, string) error     { return nil }
func (f *fakeMessages) ListByProject(context.Context, int64, model.MessageStatus, int, int) ([]model.Message, error) {
	return nil, nil
}

func keyOf(projectID int64, key string) string {
	return fmt.Sprintf("%d/%s", projectID, key)
}

type fakeConnectors struct {
	rows map[string]int64 // id -> owning project
}

func (f *fakeConnectors) GetByID(_ context.Context, id string, projectID int64) (*model.Connector, error) {
	if owner, ok := f.rows[id]; ok && owner == projectID {
		return &model.Connector{ID: id, ProjectID: projectID, Type: model.ProviderWhatsApp}, nil
	}
	return nil, nil
}

type fakeTemplates struct {
	rows map[string]int64
}

func (f *fakeTemplates) GetByID(_ context.Context, id string, projectID int64) (*model.Template, error) {
	if owner, ok := f.rows[id]; ok && owner == projectID {
		return &model.Template{ID: id, ProjectID: projectID, Body: "Hi {{name}}"}, nil
	}
	return nil, nil
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) EnqueueDispatch(_ context.Context, messageID string) error {
	f.enqueued = append(f.enqueued, messageID)
	return nil
}

func newService() (*Service, *fakeMessages, *fakeQueue) {
	msgs := newFakeMessages()
	q := &fakeQueue{}
	svc := New(
		msgs,
		&fakeConnectors{rows: map[string]int64{"con-1": 1, "con-other": 2}},
		&fakeTemplates{rows: map[string]int64{"tpl-1": 1, "tpl-other": 2}},
		q,
	)
	return svc, msgs, q
}

func validRequest() AdmitRequest {
	return AdmitRequest{
		ProjectID:   1,
		ConnectorID: "con-1",
		TemplateID:  "tpl-1",
		Recipient:   "+1234567890",
		Variables:   model.Variables{"name": "John"},
	}
}

func TestAdmitQueuesMessage(t *testing.T) {
	svc, msgs, q := newService()

	msg, err := svc.Admit(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, model.StatusQueued, msg.Status)
	assert.NotEmpty(t, msg.ID)
	require.Len(t, msgs.inserted, 1)
	assert.Equal(t, []string{msg.ID}, q.enqueued)
}

func TestAdmitIdempotentReplay(t *testing.T) {
	svc, msgs, q := newService()

	req := validRequest()
	req.IdempotencyKey = "abc-123"

	first, err := svc.Admit(context.Background(), req)
	require.NoError(t, err)

	// replay with a different body must still return the original message
	req.Recipient = "+9876543210"
	second, err := svc.Admit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, msgs.inserted, 1, "replay must not insert")
	assert.Len(t, q.enqueued, 1, "replay must not re-enqueue")
}

func TestAdmitCrossProjectConnectorIsNotFound(t *testing.T) {
	svc, msgs, _ := newService()

	req := validRequest()
	req.ConnectorID = "con-other" // exists, but owned by project 2

	_, err := svc.Admit(context.Background(), req)
	require.ErrorIs(t, err, ErrConnectorNotFound)
	assert.Empty(t, msgs.inserted)
}

func TestAdmitMissingTemplateIsNotFound(t *testing.T) {
	svc, _, _ := newService()

	req := validRequest()
	req.TemplateID = "tpl-missing"

	_, err := svc.Admit(context.Background(), req)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestAdmitDuplicateKeyRaceResolvesToWinner(t *testing.T) {
	svc, msgs, q := newService()

	winner := model.Message{ID: "01J0WINNER", ProjectID: 1, Status: model.StatusQueued}
	key := "abc-123"
	winner.IdempotencyKey = &key
	msgs.failNext = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	msgs.byKey[keyOf(1, key)] = &winner

	req := validRequest()
	req.IdempotencyKey = key

	got, err := svc.Admit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "01J0WINNER", got.ID)
	assert.Empty(t, q.enqueued, "loser of the race must not enqueue")
}
