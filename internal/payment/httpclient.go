package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/domain/model"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 15 * time.Second
	maxProviderResponse = 1 << 20
)

// AdapterConfig は実プロバイダのアダプタが使う設定。
type AdapterConfig struct {
	BaseURL      string
	MerchantID   string
	MerchantKey  string
	MerchantCode string
	CallbackURL  string // webhook の受け口
	ReturnURL    string // リダイレクト決済後の戻り先
	Timeout      time.Duration
	RatePerSec   float64 // 0 なら無制限
}

// endpoint は外向き HTTP 呼び出しの共通部分。自動リトライはしない。
type endpoint struct {
	provider model.PaymentProvider
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
}

func newEndpoint(p model.PaymentProvider, cfg AdapterConfig) endpoint {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return endpoint{
		provider: p,
		baseURL:  cfg.BaseURL,
		client:   &http.Client{Timeout: timeout},
		limiter:  lim,
	}
}

// do はリクエストを送り、ステータスとボディ（上限つき）を返す。
// 通信エラー・タイムアウト・5xx は unavailable にする。
func (e endpoint) do(ctx context.Context, req *http.Request) (int, []byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return 0, nil, unavailable(e.provider, fmt.Errorf("outbound rate limit: %w", err))
		}
	}

	resp, err := e.client.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, unavailable(e.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return resp.StatusCode, nil, unavailable(e.provider, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, body, unavailable(e.provider, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.StatusCode, body, nil
}
