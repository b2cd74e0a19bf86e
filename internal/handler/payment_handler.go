package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const maxPaymentBodyBytes = 64 << 10

// amount は桁落ちしないよう json.Number で受ける
type PaymentInitiateRequest struct {
	Amount      json.Number    `json:"amount"`
	PhoneNumber string         `json:"phoneNumber"`
	Currency    string         `json:"currency"`
	Metadata    map[string]any `json:"metadata"`
	OrderID     string         `json:"orderId"`
}

type PaymentInitiateResponse struct {
	Success      bool   `json:"success"`
	Reference    string `json:"reference"`
	MerchantCode string `json:"merchantCode,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// gates はレート制限 → APIトークンの順で渡す
func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, gates ...echo.MiddlewareFunc) {
	e.POST("/payments/:provider", h.initiate, gates...)
}

func (h *PaymentHandler) initiate(c echo.Context) error {
	if !isJSON(c.Request().Header.Get(echo.HeaderContentType)) {
		return c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Error: "Content-Type must be application/json",
			Code:  usecase.CodeUnsupportedMediaType,
		})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPaymentBodyBytes+1))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(body) > maxPaymentBodyBytes {
		return badRequest(c, "request body too large")
	}

	req, msg := decodePaymentRequest(body)
	if msg != "" {
		return badRequest(c, msg)
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return badRequest(c, "A valid payment amount is required")
	}

	out, err := h.uc.Initiate(c.Request().Context(), usecase.InitiatePaymentInput{
		Provider:       c.Param("provider"),
		Amount:         amount,
		PhoneNumber:    req.PhoneNumber,
		Currency:       req.Currency,
		Metadata:       req.Metadata,
		OrderID:        req.OrderID,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, PaymentInitiateResponse{
		Success:      true,
		Reference:    out.Reference,
		MerchantCode: out.MerchantCode,
		RedirectURL:  out.RedirectURL,
		Instructions: out.Instructions,
	})
}

// 戻り値の msg が空でなければ 400
func decodePaymentRequest(body []byte) (PaymentInitiateRequest, string) {
	var req PaymentInitiateRequest

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "amount" {
				return req, "A valid payment amount is required"
			}
			return req, "invalid field: " + typeErr.Field
		}
		return req, "invalid JSON body"
	}
	if req.Amount == "" {
		return req, "A valid payment amount is required"
	}
	return req, ""
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == echo.MIMEApplicationJSON
}
