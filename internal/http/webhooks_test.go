package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVerifyToken = "super-secret-verify-token"

func doVerify(t *testing.T, params url.Values) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, verifyWebhookHandler(testVerifyToken)(c))
	return rec
}

func TestVerifyWebhookEchoesChallenge(t *testing.T) {
	rec := doVerify(t, url.Values{
		"mode":         {"subscribe"},
		"verify_token": {testVerifyToken},
		"challenge":    {"1158201444"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())
}

func TestVerifyWebhookWrongToken(t *testing.T) {
	rec := doVerify(t, url.Values{
		"mode":         {"subscribe"},
		"verify_token": {"guessed"},
		"challenge":    {"1158201444"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "1158201444")
}

func TestVerifyWebhookWrongMode(t *testing.T) {
	rec := doVerify(t, url.Values{
		"mode":         {"unsubscribe"},
		"verify_token": {testVerifyToken},
		"challenge":    {"1158201444"},
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyWebhookMissingParams(t *testing.T) {
	rec := doVerify(t, url.Values{"mode": {"subscribe"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveWebhookAlwaysAccepts(t *testing.T) {
	e := echo.New()

	cases := map[string]struct {
		provider string
		body     string
	}{
		"malformed json":   {"sms", `{"events": [`},
		"unknown provider": {"fax", `{}`},
		"empty body":       {"telegram", ``},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/"+tc.provider, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("provider")
			c.SetParamValues(tc.provider)

			require.NoError(t, receiveWebhookHandler(newTestReconciler())(c))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
