package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msggw/internal/model"
	"msggw/internal/service/admission"
)

type sendFixture struct {
	svc      *admission.Service
	messages *fakeMessagesRepo
	jobs     *fakeEnqueuer
}

func newSendFixture() sendFixture {
	messages := newFakeMessagesRepo()
	connectors := &fakeConnectorsRepo{rows: map[string]*model.Connector{
		"conn-1": {ID: "conn-1", ProjectID: 1, Type: model.ProviderWhatsApp},
		"conn-2": {ID: "conn-2", ProjectID: 2, Type: model.ProviderSMS},
	}}
	templates := &fakeTemplatesRepo{rows: map[string]*model.Template{
		"tpl-1": {ID: "tpl-1", ProjectID: 1, Body: "Hi {{name}}"},
	}}
	jobs := &fakeEnqueuer{}

	return sendFixture{
		svc:      admission.New(messages, connectors, templates, jobs),
		messages: messages,
		jobs:     jobs,
	}
}

func postMessage(t *testing.T, svc *admission.Service, body string, hdr map[string]string, projectID int64) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if projectID > 0 {
		c.Set("project_id", projectID)
	}

	require.NoError(t, sendMessageHandler(svc)(c))
	return rec
}

func TestSendMessageAccepted(t *testing.T) {
	f := newSendFixture()

	rec := postMessage(t, f.svc, `{
		"connector_id": "conn-1",
		"template_id": "tpl-1",
		"to": "+49 170 1234567",
		"variables": {"name": "John"}
	}`, nil, 1)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["message_id"])
	assert.Equal(t, "queued", resp["status"])

	require.Len(t, f.messages.inserted, 1)
	assert.Equal(t, "+491701234567", f.messages.inserted[0].Recipient)
	assert.Equal(t, []string{resp["message_id"]}, f.jobs.enqueued)
}

func TestSendMessageIdempotentReplay(t *testing.T) {
	f := newSendFixture()
	f.messages.byIdemKey["abc-123"] = &model.Message{ID: "msg-orig", Status: model.StatusSent}

	rec := postMessage(t, f.svc, `{
		"connector_id": "conn-1", "template_id": "tpl-1", "to": "+491701234567"
	}`, map[string]string{"Idempotency-Key": "abc-123"}, 1)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "msg-orig", resp["message_id"])
	assert.Equal(t, "sent", resp["status"])

	assert.Empty(t, f.messages.inserted)
	assert.Empty(t, f.jobs.enqueued)
}

func TestSendMessageValidation(t *testing.T) {
	f := newSendFixture()

	cases := map[string]string{
		"missing connector": `{"template_id": "tpl-1", "to": "+491701234567"}`,
		"missing template":  `{"connector_id": "conn-1", "to": "+491701234567"}`,
		"missing recipient": `{"connector_id": "conn-1", "template_id": "tpl-1"}`,
		"bad e164":          `{"connector_id": "conn-1", "template_id": "tpl-1", "to": "+0012"}`,
		"not json":          `connector_id=conn-1`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postMessage(t, f.svc, body, nil, 1)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION")
		})
	}

	assert.Empty(t, f.jobs.enqueued)
}

func TestSendMessageCrossProjectConnectorIs404(t *testing.T) {
	f := newSendFixture()

	// conn-2 exists but belongs to project 2
	rec := postMessage(t, f.svc, `{
		"connector_id": "conn-2", "template_id": "tpl-1", "to": "+491701234567"
	}`, nil, 1)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	assert.Contains(t, rec.Body.String(), "connector")
	assert.Empty(t, f.jobs.enqueued)
}

func TestSendMessageUnknownTemplateIs404(t *testing.T) {
	f := newSendFixture()

	rec := postMessage(t, f.svc, `{
		"connector_id": "conn-1", "template_id": "tpl-nope", "to": "+491701234567"
	}`, nil, 1)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "template")
}

func TestSendMessageUnauthorizedWithoutProject(t *testing.T) {
	f := newSendFixture()

	rec := postMessage(t, f.svc, `{
		"connector_id": "conn-1", "template_id": "tpl-1", "to": "+491701234567"
	}`, nil, 0)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessageTooManyVariables(t *testing.T) {
	f := newSendFixture()

	vars := map[string]string{}
	for i := 0; i < 65; i++ {
		vars[fmt.Sprintf("v%d", i)] = "1"
	}
	body, err := json.Marshal(map[string]any{
		"connector_id": "conn-1",
		"template_id":  "tpl-1",
		"to":           "+491701234567",
		"variables":    vars,
	})
	require.NoError(t, err)
	require.Len(t, vars, 65)

	rec := postMessage(t, f.svc, string(body), nil, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
