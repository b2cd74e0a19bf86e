// Package payment は決済プロバイダ（EcoCash / Paynow / ZB / mock）を同じ形で扱うためのアダプタ群。
package payment

import (
	"context"
	"strings"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// Provider は「支払いを開始する」能力だけを持つ。
type Provider interface {
	Name() model.PaymentProvider
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
}

type InitiateRequest struct {
	Amount      decimal.Decimal
	PayerHandle string // 電話番号 or メールアドレス
	Currency    string
	Metadata    map[string]any
	OrderRef    string
}

// Normalize はネットワーク呼び出しの前に必ず通す。
func (r InitiateRequest) Normalize() (InitiateRequest, error) {
	//プロバイダへは小数2桁で送るため、丸めで値が変わる金額は受けない
	if !r.Amount.IsPositive() || !r.Amount.Equal(r.Amount.Round(2)) {
		return r, errInvalid("A valid payment amount is required")
	}
	r.PayerHandle = strings.TrimSpace(r.PayerHandle)
	if r.PayerHandle == "" {
		return r, errInvalid("A phone number is required")
	}
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	r.OrderRef = strings.TrimSpace(r.OrderRef)
	return r, nil
}

type InitiateResult struct {
	Reference         string
	RedirectURL       string
	MerchantCode      string
	Instructions      string
	ProviderReference string
}

// 参照番号の接頭辞（ECO-xxxx など）
func Prefix(p model.PaymentProvider) string {
	switch p {
	case model.ProviderEcoCash:
		return "ECO"
	case model.ProviderPaynow:
		return "PN"
	case model.ProviderZB:
		return "ZB"
	default:
		return strings.ToUpper(string(p))
	}
}

// 電話番号っぽいか（Paynow はこれでモバイル決済かリダイレクトかを分ける）
func looksLikePhone(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if len(s) < 7 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
