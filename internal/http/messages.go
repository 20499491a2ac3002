package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"

	"msggw/internal/http/middleware"
	"msggw/internal/model"
	"msggw/internal/repository"
)

// messageView is the API shape of a message row. Credentials and other
// connector internals never appear here; the error string does, since it is
// the caller's only failure-discovery channel.
type messageView struct {
	MessageID         string          `json:"message_id"`
	ConnectorID       string          `json:"connector_id"`
	TemplateID        string          `json:"template_id"`
	To                string          `json:"to"`
	Variables         model.Variables `json:"variables,omitempty"`
	Status            string          `json:"status"`
	ExternalMessageID *string         `json:"external_message_id,omitempty"`
	Error             *string         `json:"error,omitempty"`
	SentAt            *string         `json:"sent_at,omitempty"`
	DeliveredAt       *string         `json:"delivered_at,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

func toView(m model.Message) messageView {
	v := messageView{
		MessageID:         m.ID,
		ConnectorID:       m.ConnectorID,
		TemplateID:        m.TemplateID,
		To:                m.Recipient,
		Variables:         m.Variables,
		Status:            m.Status.String(),
		ExternalMessageID: m.ExternalMessageID,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.SentAt != nil {
		s := m.SentAt.UTC().Format(time.RFC3339)
		v.SentAt = &s
	}
	if m.DeliveredAt != nil {
		s := m.DeliveredAt.UTC().Format(time.RFC3339)
		v.DeliveredAt = &s
	}
	return v
}

func listMessagesHandler(messages repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		projID, ok := middleware.ProjectIDFromCtx(c)
		if !ok || projID <= 0 {
			return errJSON(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var st model.MessageStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.MessageStatus(strings.ToLower(raw))
			if !tmp.Valid() {
				return errJSON(c, http.StatusBadRequest, codeValidation, "unknown status filter")
			}
			st = tmp
		}

		msgs, err := messages.ListByProject(c.Request().Context(), projID, st, limit, offset)
		if err != nil {
			c.Logger().Errorf("message list failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, codeInternal, "query failed")
		}

		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, toView(m))
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":    limit,
			"offset":   offset,
			"count":    len(views),
			"messages": views,
		})
	}
}

func getMessageHandler(messages repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		projID, ok := middleware.ProjectIDFromCtx(c)
		if !ok || projID <= 0 {
			return errJSON(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		}

		m, err := messages.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Errorf("message get failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, codeInternal, "query failed")
		}
		if m == nil || m.ProjectID != projID {
			return errJSON(c, http.StatusNotFound, codeNotFound, "message not found")
		}

		return c.JSON(http.StatusOK, toView(*m))
	}
}

func listAttemptsHandler(messages repository.MessagesRepository, attempts repository.AttemptsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		projID, ok := middleware.ProjectIDFromCtx(c)
		if !ok || projID <= 0 {
			return errJSON(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		}

		// ownership check before touching the audit store
		m, err := messages.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Errorf("message get failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, codeInternal, "query failed")
		}
		if m == nil || m.ProjectID != projID {
			return errJSON(c, http.StatusNotFound, codeNotFound, "message not found")
		}

		rows, err := attempts.ListByMessage(c.Request().Context(), m.ID, 100)
		if err != nil {
			c.Logger().Errorf("attempt list failed: %v", err)

			return errJSON(c, http.StatusInternalServerError, codeInternal, "query failed")
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message_id": m.ID,
			"attempts":   rows,
		})
	}
}
