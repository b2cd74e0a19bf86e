package server

import (
	"net/http"
	"time"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

// Handlers はルーティングに必要なものをまとめたもの
type Handlers struct {
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	Payment      *handler.PaymentHandler
	Webhook      *handler.WebhookHandler
	Assistant    *handler.AssistantHandler
}

// Gates は公開APIの前段（レート制限 → APIトークン）
type Gates struct {
	Limiter           ratelimit.Limiter
	Window            time.Duration
	PaymentsPerWindow int
	AIPerWindow       int
	APIToken          string
	JWTSecret         string
}

func RegisterRoutes(e *echo.Echo, h Handlers, g Gates, opts Options) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	token := middleware.APIToken(g.APIToken)

	h.Product.RegisterRoutes(e)
	h.Order.RegisterRoutes(e)
	h.Payment.RegisterRoutes(e,
		middleware.RateLimit(g.Limiter, g.PaymentsPerWindow, g.Window, opts.Logger),
		token,
	)
	h.Webhook.RegisterRoutes(e)
	h.Assistant.RegisterRoutes(e,
		middleware.RateLimit(g.Limiter, g.AIPerWindow, g.Window, opts.Logger),
		token,
	)

	h.AdminProduct.RegisterRoutes(e, g.JWTSecret)
	h.AdminOrder.RegisterRoutes(e, g.JWTSecret)
}
