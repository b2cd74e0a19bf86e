package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

// RateLimit は固定ウィンドウでクライアント×ルートごとに絞る。
// ヘッダは最終的なステータスに関係なく必ず付ける。
func RateLimit(limiter ratelimit.Limiter, limit int, window time.Duration, log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := ClientID(c.Request())

			//同じ limiter を別ルートと共有してもカウンタは分ける
			d, err := limiter.Check(c.Request().Context(), clientID+"|"+c.Path(), limit, window)
			h := c.Response().Header()
			if err != nil {
				//ストアが落ちていても止めない。残数は分からないので上限として扱う
				if log != nil {
					log.Error("rate limiter unavailable", "client", clientID, "err", err)
				}
				h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(limit))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))
				return next(c)
			}

			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if d.Limited {
				h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
				if log != nil {
					log.Warn("rate limited", "client", clientID, "path", c.Path())
				}
				return c.JSON(http.StatusTooManyRequests, errorJSON("Too many requests, please try again later", codeRateLimited))
			}

			return next(c)
		}
	}
}
