package http

import (
	echo "github.com/labstack/echo/v4"
)

// All error responses share one envelope: {"error": {"code", "message"}}.
// Codes are stable identifiers for clients; messages are for humans.
const (
	codeValidation   = "VALIDATION"
	codeUnauthorized = "UNAUTHORIZED"
	codeNotFound     = "NOT_FOUND"
	codeInternal     = "INTERNAL"
)

func errJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
