package http

import (
	"crypto/subtle"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"msggw/internal/model"
	"msggw/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// verifyWebhookHandler answers the provider's subscription handshake:
// GET ?mode=subscribe&verify_token=...&challenge=... echoes the challenge
// when the token matches. The compare is constant-time.
func verifyWebhookHandler(verifyToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		mode := c.QueryParam("mode")
		token := c.QueryParam("verify_token")
		challenge := c.QueryParam("challenge")

		if mode == "" || token == "" || challenge == "" {
			return errJSON(c, http.StatusBadRequest, codeValidation, "missing handshake parameters")
		}
		if mode != "subscribe" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
			return errJSON(c, http.StatusForbidden, codeUnauthorized, "verification failed")
		}
		return c.String(http.StatusOK, challenge)
	}
}

// receiveWebhookHandler ingests provider status callbacks. The answer is
// always 200: a provider that sees errors retries forever and may disable
// the webhook, so every failure here is logged and swallowed.
func receiveWebhookHandler(rec *webhook.Reconciler) echo.HandlerFunc {
	return func(c echo.Context) error {
		provider, ok := model.ParseProviderType(c.Param("provider"))
		if !ok {
			log.Warnf("webhook: callback for unknown provider %q", c.Param("provider"))

			return c.NoContent(http.StatusOK)
		}

		payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
		if err != nil {
			log.Errorf("webhook: body read failed: %v", err)

			return c.NoContent(http.StatusOK)
		}

		if err := rec.HandleEvents(c.Request().Context(), provider, payload); err != nil {
			log.Warnf("webhook: %s payload dropped: %v", provider, err)
		}
		return c.NoContent(http.StatusOK)
	}
}
