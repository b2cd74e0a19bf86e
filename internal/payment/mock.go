package payment

import (
	"context"
	"net/url"
	"strings"

	"storefront/internal/domain/model"
)

// Mock はネットワークに出ずに実プロバイダと同じ形の結果を返す（sandbox 用）。
type Mock struct {
	provider     model.PaymentProvider
	merchantCode string
}

func NewMock(p model.PaymentProvider, merchantCode string) *Mock {
	return &Mock{provider: p, merchantCode: merchantCode}
}

func (m *Mock) Name() model.PaymentProvider { return m.provider }

func (m *Mock) Initiate(_ context.Context, in InitiateRequest) (InitiateResult, error) {
	req, err := in.Normalize()
	if err != nil {
		return InitiateResult{}, withProvider(m.provider, err)
	}

	ref := mockReference(Prefix(m.provider), req)
	out := InitiateResult{
		Reference:         ref,
		MerchantCode:      m.merchantCode,
		ProviderReference: "MOCK-" + strings.TrimPrefix(ref, Prefix(m.provider)+"-"),
	}

	switch {
	case m.provider == model.ProviderEcoCash,
		m.provider == model.ProviderPaynow && looksLikePhone(req.PayerHandle):
		out.Instructions = ecoCashInstructions(req.PayerHandle)
	default:
		out.RedirectURL = "https://mock." + string(m.provider) + ".local/checkout?reference=" + url.QueryEscape(ref)
	}
	return out, nil
}

// IsMockHost はベースURLのホストが mock 用か（未設定も mock 扱い）。
func IsMockHost(baseURL string) bool {
	if strings.TrimSpace(baseURL) == "" {
		return true
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == "mock" ||
		strings.HasPrefix(host, "mock.") ||
		strings.Contains(host, ".mock.") ||
		strings.HasSuffix(host, ".mock")
}

// Unavailable は本番で資格情報がないプロバイダ。呼ぶと必ず 503 相当。
type Unavailable struct {
	provider model.PaymentProvider
}

func NewUnavailable(p model.PaymentProvider) *Unavailable {
	return &Unavailable{provider: p}
}

func (u *Unavailable) Name() model.PaymentProvider { return u.provider }

func (u *Unavailable) Initiate(_ context.Context, in InitiateRequest) (InitiateResult, error) {
	if _, err := in.Normalize(); err != nil {
		return InitiateResult{}, withProvider(u.provider, err)
	}
	return InitiateResult{}, &InitiationError{
		Provider: u.provider,
		Kind:     KindUnavailable,
		Reason:   "Payment provider is not configured",
	}
}
