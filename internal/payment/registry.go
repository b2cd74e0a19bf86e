package payment

import (
	"log/slog"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"
)

// Entry はプロバイダ1つ分の送信側・受信側・webhook署名ポリシー。
type Entry struct {
	Provider      Provider
	Webhook       Webhook
	Secret        string
	AllowUnsigned bool
}

type Registry struct {
	entries map[model.PaymentProvider]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[model.PaymentProvider]Entry{}}
}

func (r *Registry) Register(p model.PaymentProvider, e Entry) {
	r.entries[p] = e
}

func (r *Registry) Lookup(p model.PaymentProvider) (Entry, bool) {
	e, ok := r.entries[p]
	return e, ok
}

// Mode はどのアダプタが選ばれたか（起動ログ用）
type Mode string

const (
	ModeLive        Mode = "live"
	ModeMock        Mode = "mock"
	ModeUnavailable Mode = "unavailable"
)

// SelectMode の規則:
//   - sandbox、または base URL のホストが mock 用 → mock
//   - production で資格情報なし → unavailable
//   - それ以外 → 実プロバイダ
func SelectMode(appEnv string, pc config.ProviderConfig) Mode {
	if appEnv == config.EnvSandbox {
		return ModeMock
	}
	if pc.BaseURL != "" && IsMockHost(pc.BaseURL) {
		return ModeMock
	}
	if !pc.Configured() {
		return ModeUnavailable
	}
	return ModeLive
}

// NewRegistryFromConfig は3プロバイダ分のアダプタと webhook を組み立てる。
func NewRegistryFromConfig(cfg config.Config, log *slog.Logger) *Registry {
	r := NewRegistry()

	providers := []struct {
		tag     model.PaymentProvider
		pc      config.ProviderConfig
		webhook Webhook
		live    func(AdapterConfig) Provider
	}{
		{model.ProviderEcoCash, cfg.EcoCash, NewEcoCashWebhook(), func(c AdapterConfig) Provider { return NewEcoCash(c) }},
		{model.ProviderPaynow, cfg.Paynow, NewPaynowWebhook(), func(c AdapterConfig) Provider { return NewPaynow(c) }},
		{model.ProviderZB, cfg.ZB, NewZBWebhook(), func(c AdapterConfig) Provider { return NewZB(c) }},
	}

	for _, p := range providers {
		merchantCode := p.pc.MerchantCode
		if merchantCode == "" {
			merchantCode = cfg.DefaultMerchantCode
		}

		mode := SelectMode(cfg.AppEnv, p.pc)
		var adapter Provider
		switch mode {
		case ModeMock:
			adapter = NewMock(p.tag, merchantCode)
		case ModeUnavailable:
			adapter = NewUnavailable(p.tag)
		default:
			adapter = p.live(AdapterConfig{
				BaseURL:      p.pc.BaseURL,
				MerchantID:   p.pc.MerchantID,
				MerchantKey:  p.pc.MerchantKey,
				MerchantCode: merchantCode,
				CallbackURL:  callbackURL(cfg.CallbackBaseURL, p.tag),
				ReturnURL:    strings.TrimRight(cfg.CallbackBaseURL, "/") + "/orders",
				Timeout:      cfg.ProviderTimeout,
				RatePerSec:   p.pc.RatePerSec,
			})
		}

		r.Register(p.tag, Entry{
			Provider:      adapter,
			Webhook:       p.webhook,
			Secret:        p.pc.WebhookSecret,
			AllowUnsigned: p.pc.WebhookAllowUnsigned,
		})

		if log != nil {
			log.Info("payment provider registered",
				"provider", p.tag,
				"mode", mode,
				"webhook_signed", p.pc.WebhookSecret != "",
				"webhook_allow_unsigned", p.pc.WebhookAllowUnsigned,
			)
		}
	}
	return r
}

func callbackURL(base string, p model.PaymentProvider) string {
	return strings.TrimRight(base, "/") + "/payments/" + string(p) + "/webhook"
}
