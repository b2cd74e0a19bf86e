package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
)

// EcoCash はモバイルマネー。利用者の端末に承認プロンプトが飛ぶのでリダイレクトはない。
type EcoCash struct {
	endpoint
	cfg AdapterConfig
}

func NewEcoCash(cfg AdapterConfig) *EcoCash {
	return &EcoCash{endpoint: newEndpoint(model.ProviderEcoCash, cfg), cfg: cfg}
}

func (p *EcoCash) Name() model.PaymentProvider { return model.ProviderEcoCash }

type ecoCashInitiateRequest struct {
	MerchantID  string         `json:"merchantId"`
	Reference   string         `json:"reference"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	PhoneNumber string         `json:"phoneNumber"`
	CallbackURL string         `json:"callbackUrl,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ecoCashInitiateResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	MerchantCode  string `json:"merchantCode"`
	Message       string `json:"message"`
	Instructions  string `json:"instructions"`
}

func (p *EcoCash) Initiate(ctx context.Context, in InitiateRequest) (InitiateResult, error) {
	req, err := in.Normalize()
	if err != nil {
		return InitiateResult{}, withProvider(p.Name(), err)
	}

	ref := NewReference(Prefix(p.Name()))
	payload, err := json.Marshal(ecoCashInitiateRequest{
		MerchantID:  p.cfg.MerchantID,
		Reference:   ref,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		PhoneNumber: req.PayerHandle,
		CallbackURL: p.cfg.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/payments/initiate", bytes.NewReader(payload))
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Merchant-Id", p.cfg.MerchantID)
	httpReq.Header.Set("X-Merchant-Key", p.cfg.MerchantKey)

	status, body, err := p.do(ctx, httpReq)
	if err != nil {
		return InitiateResult{}, err
	}

	var res ecoCashInitiateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		if status >= 400 {
			return InitiateResult{}, rejected(p.Name(), "")
		}
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("decode response: %w", err))
	}
	if status >= 400 {
		return InitiateResult{}, rejected(p.Name(), res.Message)
	}

	switch strings.ToUpper(res.Status) {
	case "PENDING", "SUCCESS", "INITIATED", "ACCEPTED":
	case "FAILED", "REJECTED", "DECLINED":
		return InitiateResult{}, rejected(p.Name(), res.Message)
	default:
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("unknown status %q", res.Status))
	}

	merchantCode := res.MerchantCode
	if merchantCode == "" {
		merchantCode = p.cfg.MerchantCode
	}
	instructions := res.Instructions
	if instructions == "" {
		instructions = ecoCashInstructions(req.PayerHandle)
	}

	return InitiateResult{
		Reference:         ref,
		MerchantCode:      merchantCode,
		Instructions:      instructions,
		ProviderReference: res.TransactionID,
	}, nil
}

func ecoCashInstructions(phone string) string {
	return "Approve the EcoCash prompt sent to " + phone + " and enter your PIN to complete the payment."
}
