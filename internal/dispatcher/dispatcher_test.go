package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"msggw/internal/connector"
	"msggw/internal/model"
	"msggw/internal/queue"
)

// ---- fakes ----

type fakeMessages struct {
	rows       map[string]*model.Message
	sentID     string
	sentExtID  string
	failedID   string
	failedErr  string
	markedSent int
}

func (f *fakeMessages) Insert(context.Context, model.Message) error { return nil }

func (f *fakeMessages) GetByID(_ context.Context, id string) (*model.Message, error) {
	return f.rows[id], nil
}

func (f *fakeMessages) GetByIdempotencyKey(context.Context, int64, string) (*model.Message, error) {
	return nil, nil
}
func (f *fakeMessages) GetByExternalID(context.Context, string) (*model.Message, error) {
	return nil, nil
}

func (f *fakeMessages) MarkSent(_ context.Context, id, externalID string, _ time.Time) error {
	f.sentID = id
	f.sentExtID = externalID
	f.markedSent++
	return nil
}

func (f *fakeMessages) MarkFailed(_ context.Context, id, errMsg string) error {
	f.failedID = id
	f.failedErr = errMsg
	return nil
}

func (f *fakeMessages) MarkDelivered(context.Context, string, time.Time) error { return nil }
func (f *fakeMessages) MarkUndelivered(context.Context, string, string) error  { return nil }
func (f *fakeMessages) ListByProject(context.Context, int64, model.MessageStatus, int, int) ([]model.Message, error) {
	return nil, nil
}

type fakeConnectors struct {
	row *model.Connector
}

func (f *fakeConnectors) GetByID(context.Context, string, int64) (*model.Connector, error) {
	return f.row, nil
}

type fakeTemplates struct {
	row *model.Template
}

func (f *fakeTemplates) GetByID(context.Context, string, int64) (*model.Template, error) {
	return f.row, nil
}

type fakeVault struct {
	creds model.Credentials
	err   error
}

func (f *fakeVault) Decrypt(string) (model.Credentials, error) { return f.creds, f.err }

type stubConnector struct {
	result connector.SendResult
	calls  int
	lastTo string
	body   string
}

func (s *stubConnector) Type() model.ProviderType { return model.ProviderWhatsApp }

func (s *stubConnector) Send(_ context.Context, to, body string) connector.SendResult {
	s.calls++
	s.lastTo = to
	s.body = body
	return s.result
}

// ---- helpers ----

func queuedMessage() *model.Message {
	return &model.Message{
		ID:          "01J0MSG",
		ProjectID:   1,
		ConnectorID: "01J0CON",
		TemplateID:  "01J0TPL",
		Recipient:   "+1234567890",
		Variables:   model.Variables{"name": "John"},
		Status:      model.StatusQueued,
	}
}

func newHarness(stub *stubConnector, v *fakeVault) (*Dispatcher, *fakeMessages) {
	msgs := &fakeMessages{rows: map[string]*model.Message{}}
	reg := connector.NewRegistry(time.Second)
	reg.Register(model.ProviderWhatsApp, func(model.Credentials, *http.Client) (connector.Connector, error) {
		return stub, nil
	})

	d := New(
		msgs,
		&fakeConnectors{row: &model.Connector{ID: "01J0CON", ProjectID: 1, Type: model.ProviderWhatsApp, CredentialsEncrypted: "blob"}},
		&fakeTemplates{row: &model.Template{ID: "01J0TPL", ProjectID: 1, Body: "Hi {{name}}, code {{code}}"}},
		nil,
		v,
		reg,
		nil,
		Config{SendTimeout: time.Second, SendRPS: 1000, SendBurst: 1000},
		zap.NewNop(),
	)
	return d, msgs
}

func dispatchTask(t *testing.T, messageID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(queue.DispatchPayload{MessageID: messageID})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeDispatchMessage, payload)
}

// ---- tests ----

func TestDispatchSuccessMarksSent(t *testing.T) {
	stub := &stubConnector{result: connector.SendResult{OK: true, ExternalID: "wamid.X"}}
	d, msgs := newHarness(stub, &fakeVault{creds: model.Credentials{}})
	msgs.rows["01J0MSG"] = queuedMessage()

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "+1234567890", stub.lastTo)
	assert.Equal(t, "Hi John, code {{code}}", stub.body, "unmatched placeholder passes through")
	assert.Equal(t, "01J0MSG", msgs.sentID)
	assert.Equal(t, "wamid.X", msgs.sentExtID)
}

func TestDispatchSkipsAlreadySentMessage(t *testing.T) {
	stub := &stubConnector{result: connector.SendResult{OK: true, ExternalID: "wamid.X"}}
	d, msgs := newHarness(stub, &fakeVault{creds: model.Credentials{}})

	m := queuedMessage()
	m.Status = model.StatusSent
	msgs.rows["01J0MSG"] = m

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.NoError(t, err)
	assert.Zero(t, stub.calls, "redelivery must not re-send")
	assert.Zero(t, msgs.markedSent)
}

func TestDispatchProviderFailureIsRetryable(t *testing.T) {
	stub := &stubConnector{result: connector.SendResult{Error: "status 502: upstream down"}}
	d, msgs := newHarness(stub, &fakeVault{creds: model.Credentials{}})
	msgs.rows["01J0MSG"] = queuedMessage()

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "transient failure must stay retryable")
	assert.Equal(t, "01J0MSG", msgs.failedID)
	assert.Contains(t, msgs.failedErr, "upstream down")
}

func TestDispatchDecryptFailureIsFatal(t *testing.T) {
	stub := &stubConnector{}
	d, msgs := newHarness(stub, &fakeVault{err: errors.New("authentication failed")})
	msgs.rows["01J0MSG"] = queuedMessage()

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "ciphertext will not heal on retry")
	assert.Zero(t, stub.calls)
	assert.Equal(t, "01J0MSG", msgs.failedID)
	assert.Contains(t, msgs.failedErr, "authentication failed")
}

func TestDispatchMissingMessageIsFatal(t *testing.T) {
	stub := &stubConnector{}
	d, _ := newHarness(stub, &fakeVault{creds: model.Credentials{}})

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0GONE"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Zero(t, stub.calls)
}

func TestDispatchVanishedTemplateIsFatal(t *testing.T) {
	stub := &stubConnector{}
	d, msgs := newHarness(stub, &fakeVault{creds: model.Credentials{}})
	msgs.rows["01J0MSG"] = queuedMessage()
	d.templates = &fakeTemplates{row: nil}

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Contains(t, msgs.failedErr, "vanished")
}

func TestDispatchOpenBreakerFailsWithoutProviderCall(t *testing.T) {
	stub := &stubConnector{result: connector.SendResult{Error: "boom"}}
	d, msgs := newHarness(stub, &fakeVault{creds: model.Credentials{}})
	msgs.rows["01J0MSG"] = queuedMessage()

	// trip the connector's breaker
	b := d.breakers.get("01J0CON")
	for i := 0; i < 3; i++ {
		b.OnFailure()
	}

	err := d.HandleDispatch(context.Background(), dispatchTask(t, "01J0MSG"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "open breaker is a transient condition")
	assert.Zero(t, stub.calls)
}
