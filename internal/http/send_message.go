package http

import (
	"errors"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"msggw/internal/http/middleware"
	"msggw/internal/model"
	"msggw/internal/service/admission"
	"msggw/internal/util"
)

const (
	maxVariables      = 64
	maxVariableValue  = 1024
	idempotencyKeyMax = 255
	idempotencyHeader = "Idempotency-Key"
)

type sendMessageReq struct {
	ConnectorID string          `json:"connector_id"`
	TemplateID  string          `json:"template_id"`
	To          string          `json:"to"`
	Variables   model.Variables `json:"variables"`
}

func sendMessageHandler(svc *admission.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendMessageReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, codeValidation, "bad request")
		}

		req.ConnectorID = strings.TrimSpace(req.ConnectorID)
		req.TemplateID = strings.TrimSpace(req.TemplateID)
		req.To = util.NormalizeRecipient(req.To)

		if req.ConnectorID == "" || req.TemplateID == "" {
			return errJSON(c, http.StatusBadRequest, codeValidation, "connector_id and template_id are required")
		}
		if req.To == "" {
			return errJSON(c, http.StatusBadRequest, codeValidation, "to is required")
		}
		if strings.HasPrefix(req.To, "+") && !util.ValidE164(req.To) {
			return errJSON(c, http.StatusBadRequest, codeValidation, "to is not a valid E.164 number")
		}
		if len(req.Variables) > maxVariables {
			return errJSON(c, http.StatusBadRequest, codeValidation, "too many variables")
		}
		for name, val := range req.Variables {
			if len(val) > maxVariableValue {
				return errJSON(c, http.StatusBadRequest, codeValidation, "variable "+name+" too large")
			}
		}

		idemKey := strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
		if len(idemKey) > idempotencyKeyMax {
			return errJSON(c, http.StatusBadRequest, codeValidation, "idempotency key too long")
		}

		projID, ok := middleware.ProjectIDFromCtx(c)
		if !ok || projID <= 0 {
			return errJSON(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		}

		msg, err := svc.Admit(c.Request().Context(), admission.AdmitRequest{
			ProjectID:      projID,
			ConnectorID:    req.ConnectorID,
			TemplateID:     req.TemplateID,
			Recipient:      req.To,
			Variables:      req.Variables,
			IdempotencyKey: idemKey,
		})
		if err != nil {
			switch {
			case errors.Is(err, admission.ErrConnectorNotFound):
				return errJSON(c, http.StatusNotFound, codeNotFound, "connector not found")
			case errors.Is(err, admission.ErrTemplateNotFound):
				return errJSON(c, http.StatusNotFound, codeNotFound, "template not found")
			}

			log.Errorf("admit failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, codeInternal, "admission failed")
		}

		return c.JSON(http.StatusAccepted, map[string]string{
			"message_id": msg.ID,
			"status":     msg.Status.String(),
		})
	}
}
