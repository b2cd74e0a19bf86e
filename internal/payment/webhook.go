package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/payment/signature"

	"github.com/shopspring/decimal"
)

// SignatureHeader は EcoCash / ZB が HMAC を載せてくるヘッダ。
const SignatureHeader = "X-Signature"

var ErrMalformedCallback = errors.New("malformed callback")

// Outcome はプロバイダ固有のステータス文字列を3値に寄せたもの。
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Callback は webhook/IPN の中身を正規化したもの。
type Callback struct {
	Reference         string
	ProviderReference string
	RawStatus         string
	Outcome           Outcome
	Amount            *decimal.Decimal // 送られてこなければ nil
	Metadata          map[string]any
}

// Webhook は受信側の能力（署名の取り出し・検証方式・ボディの解釈）。
type Webhook interface {
	Provider() model.PaymentProvider
	Signature(h http.Header, rawBody []byte) string
	Verifier() signature.Verifier
	Parse(rawBody []byte) (Callback, error)
}

var succeededStatuses = map[string]bool{
	"PAID":              true,
	"SUCCESS":           true,
	"SUCCESSFUL":        true,
	"COMPLETED":         true,
	"CONFIRMED":         true,
	"APPROVED":          true,
	"AWAITING DELIVERY": true,
	"DELIVERED":         true,
}

var failedStatuses = map[string]bool{
	"FAILED":    true,
	"FAILURE":   true,
	"CANCELLED": true,
	"CANCELED":  true,
	"DECLINED":  true,
	"REJECTED":  true,
	"EXPIRED":   true,
	"REFUNDED":  true,
}

// ClassifyStatus はそれ以外（Created / Sent / PENDING など）を pending にする。
func ClassifyStatus(raw string) Outcome {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	switch {
	case succeededStatuses[s]:
		return OutcomeSucceeded
	case failedStatuses[s]:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// =====================
// JSON + X-Signature（EcoCash / ZB）
// =====================

type jsonWebhook struct {
	provider    model.PaymentProvider
	providerRef string // プロバイダ側の取引IDが入るキー
}

func NewEcoCashWebhook() Webhook {
	return jsonWebhook{provider: model.ProviderEcoCash, providerRef: "transactionId"}
}

func NewZBWebhook() Webhook {
	return jsonWebhook{provider: model.ProviderZB, providerRef: "transactionReference"}
}

func (w jsonWebhook) Provider() model.PaymentProvider { return w.provider }

func (w jsonWebhook) Signature(h http.Header, _ []byte) string {
	return h.Get(SignatureHeader)
}

func (w jsonWebhook) Verifier() signature.Verifier { return signature.NewHMACSHA256() }

func (w jsonWebhook) Parse(rawBody []byte) (Callback, error) {
	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	ref := stringField(body, "reference")
	status := stringField(body, "status")
	if ref == "" || status == "" {
		return Callback{}, fmt.Errorf("%w: reference and status are required", ErrMalformedCallback)
	}

	cb := Callback{
		Reference:         ref,
		ProviderReference: stringField(body, w.providerRef),
		RawStatus:         status,
		Outcome:           ClassifyStatus(status),
	}
	if raw, ok := body["amount"]; ok && raw != nil {
		amt, err := decimal.NewFromString(fmt.Sprint(raw))
		if err != nil {
			return Callback{}, fmt.Errorf("%w: amount: %v", ErrMalformedCallback, err)
		}
		cb.Amount = &amt
	}
	if md, ok := body["metadata"].(map[string]any); ok {
		cb.Metadata = md
	}
	return cb, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// =====================
// フォーム + hash 項目（Paynow）
// =====================

type paynowWebhook struct{}

func NewPaynowWebhook() Webhook { return paynowWebhook{} }

func (paynowWebhook) Provider() model.PaymentProvider { return model.ProviderPaynow }

func (paynowWebhook) Signature(_ http.Header, rawBody []byte) string {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return ""
	}
	return values.Get(signature.HashField)
}

func (paynowWebhook) Verifier() signature.Verifier { return signature.NewPaynowHash() }

func (paynowWebhook) Parse(rawBody []byte) (Callback, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	ref := strings.TrimSpace(values.Get("reference"))
	status := strings.TrimSpace(values.Get("status"))
	if ref == "" || status == "" {
		return Callback{}, fmt.Errorf("%w: reference and status are required", ErrMalformedCallback)
	}

	cb := Callback{
		Reference:         ref,
		ProviderReference: values.Get("paynowreference"),
		RawStatus:         status,
		Outcome:           ClassifyStatus(status),
	}
	if raw := values.Get("amount"); raw != "" {
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: amount: %v", ErrMalformedCallback, err)
		}
		cb.Amount = &amt
	}
	if poll := values.Get("pollurl"); poll != "" {
		cb.Metadata = map[string]any{"pollurl": poll}
	}
	return cb, nil
}
