package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const APIKeyHeader = "X-API-Key"

// APIToken は費用のかかるエンドポイントの前に置く。
// expected が空なら素通し。無ければ401、違えば403。
func APIToken(expected string) echo.MiddlewareFunc {
	expected = strings.TrimSpace(expected)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if expected == "" {
				return next(c)
			}

			given, ok := bearerToken(c.Request())
			if !ok {
				given = strings.TrimSpace(c.Request().Header.Get(APIKeyHeader))
			}
			if given == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized", codeUnauthorized))
			}
			if subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden", codeForbidden))
			}

			return next(c)
		}
	}
}
