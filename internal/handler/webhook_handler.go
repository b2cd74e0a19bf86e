package handler

import (
	"io"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const maxWebhookBodyBytes = 1 << 20

// プロバイダ向けの応答。{received:true} か {error}
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type WebhookErrorResponse struct {
	Error string `json:"error"`
}

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

// webhook は署名で守るのでトークンのゲートは付けない
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo, gates ...echo.MiddlewareFunc) {
	e.POST("/payments/:provider/webhook", h.receive, gates...)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	// 署名は生のバイト列に対して計算されるので bind しない
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes+1))
	if err != nil || len(body) > maxWebhookBodyBytes {
		return c.JSON(http.StatusBadRequest, WebhookErrorResponse{Error: "invalid webhook payload"})
	}

	_, err = h.uc.Confirm(c.Request().Context(), usecase.ConfirmPaymentInput{
		Provider: c.Param("provider"),
		Header:   c.Request().Header,
		RawBody:  body,
	})
	if err != nil {
		if he, ok := usecase.AsHTTPError(err); ok {
			return c.JSON(he.Status, WebhookErrorResponse{Error: he.Message})
		}
		return c.JSON(http.StatusInternalServerError, WebhookErrorResponse{Error: "internal server error"})
	}

	return c.JSON(http.StatusOK, WebhookAckResponse{Received: true})
}
