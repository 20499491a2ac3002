package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"msggw/internal/repository"
)

// ProjectIDFromCtx extracts the authenticated project_id set by APIKeyMiddleware.
func ProjectIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("project_id")
	id, ok := v.(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header.
// On success it stores project_id in context and blocks suspended projects.
func APIKeyMiddleware(projects repository.ProjectsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing api key")
			}
			p, err := projects.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return errJSON(c, http.StatusInternalServerError, "INTERNAL", "auth error")
			}
			if p == nil || p.Status != "active" {
				return errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			}
			c.Set("project_id", p.ID)
			if p.RateLimitRPS != nil {
				c.Set("project_rps", *p.RateLimitRPS)
			}
			return next(c)
		}
	}
}

func errJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
