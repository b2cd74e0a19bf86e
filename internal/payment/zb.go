package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront/internal/domain/model"
)

// ZB は銀行のリダイレクト決済。チェックアウトURLを返す。
type ZB struct {
	endpoint
	cfg AdapterConfig
}

func NewZB(cfg AdapterConfig) *ZB {
	return &ZB{endpoint: newEndpoint(model.ProviderZB, cfg), cfg: cfg}
}

func (p *ZB) Name() model.PaymentProvider { return model.ProviderZB }

type zbCheckoutRequest struct {
	MerchantID    string         `json:"merchantId"`
	Reference     string         `json:"reference"`
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	CustomerPhone string         `json:"customerPhone"`
	ReturnURL     string         `json:"returnUrl,omitempty"`
	CallbackURL   string         `json:"callbackUrl,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type zbCheckoutResponse struct {
	CheckoutURL          string `json:"checkoutUrl"`
	TransactionReference string `json:"transactionReference"`
	MerchantCode         string `json:"merchantCode"`
	Error                string `json:"error"`
}

func (p *ZB) Initiate(ctx context.Context, in InitiateRequest) (InitiateResult, error) {
	req, err := in.Normalize()
	if err != nil {
		return InitiateResult{}, withProvider(p.Name(), err)
	}

	ref := NewReference(Prefix(p.Name()))
	payload, err := json.Marshal(zbCheckoutRequest{
		MerchantID:    p.cfg.MerchantID,
		Reference:     ref,
		Amount:        req.Amount.StringFixed(2),
		Currency:      req.Currency,
		CustomerPhone: req.PayerHandle,
		ReturnURL:     p.cfg.ReturnURL,
		CallbackURL:   p.cfg.CallbackURL,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/api/v1/checkout", bytes.NewReader(payload))
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.MerchantKey)

	status, body, err := p.do(ctx, httpReq)
	if err != nil {
		return InitiateResult{}, err
	}

	var res zbCheckoutResponse
	if err := json.Unmarshal(body, &res); err != nil {
		if status >= 400 {
			return InitiateResult{}, rejected(p.Name(), "")
		}
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("decode response: %w", err))
	}
	if status >= 400 {
		return InitiateResult{}, rejected(p.Name(), res.Error)
	}
	if res.CheckoutURL == "" {
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("checkoutUrl missing"))
	}

	merchantCode := res.MerchantCode
	if merchantCode == "" {
		merchantCode = p.cfg.MerchantCode
	}
	return InitiateResult{
		Reference:         ref,
		RedirectURL:       res.CheckoutURL,
		MerchantCode:      merchantCode,
		ProviderReference: res.TransactionReference,
	}, nil
}
