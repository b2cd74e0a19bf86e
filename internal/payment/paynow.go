package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/payment/signature"
)

// Paynow はフォーム送信の API。リクエストもレスポンスも integration key でハッシュ署名する。
// 支払者が電話番号ならモバイル決済（remotetransaction）、それ以外はリダイレクト決済。
type Paynow struct {
	endpoint
	cfg  AdapterConfig
	hash signature.SortedParamHash
}

func NewPaynow(cfg AdapterConfig) *Paynow {
	return &Paynow{
		endpoint: newEndpoint(model.ProviderPaynow, cfg),
		cfg:      cfg,
		hash:     signature.NewPaynowHash(),
	}
}

func (p *Paynow) Name() model.PaymentProvider { return model.ProviderPaynow }

func (p *Paynow) Initiate(ctx context.Context, in InitiateRequest) (InitiateResult, error) {
	req, err := in.Normalize()
	if err != nil {
		return InitiateResult{}, withProvider(p.Name(), err)
	}

	ref := NewReference(Prefix(p.Name()))
	info := req.OrderRef
	if info == "" {
		info = ref
	}

	form := url.Values{}
	form.Set("id", p.cfg.MerchantID)
	form.Set("reference", ref)
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("additionalinfo", info)
	form.Set("returnurl", p.cfg.ReturnURL)
	form.Set("resulturl", p.cfg.CallbackURL)
	form.Set("status", "Message")

	path := "/interface/initiatetransaction"
	mobile := looksLikePhone(req.PayerHandle)
	if mobile {
		path = "/interface/remotetransaction"
		form.Set("phone", req.PayerHandle)
		form.Set("method", "ecocash")
	} else {
		form.Set("authemail", req.PayerHandle)
	}
	form.Set(signature.HashField, p.hash.SignValues(form, p.cfg.MerchantKey))

	httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := p.do(ctx, httpReq)
	if err != nil {
		return InitiateResult{}, err
	}

	res, err := url.ParseQuery(string(body))
	if err != nil {
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("decode response: %w", err))
	}

	if strings.EqualFold(res.Get("status"), "error") || status >= 400 {
		return InitiateResult{}, rejected(p.Name(), res.Get("error"))
	}
	if !strings.EqualFold(res.Get("status"), "ok") {
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("unknown status %q", res.Get("status")))
	}
	//成功レスポンスは署名されている
	if !p.hash.Verify(body, res.Get(signature.HashField), p.cfg.MerchantKey) {
		return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("response hash mismatch"))
	}

	out := InitiateResult{
		Reference:         ref,
		MerchantCode:      p.cfg.MerchantCode,
		ProviderReference: res.Get("paynowreference"),
	}
	if mobile {
		out.Instructions = res.Get("instructions")
		if out.Instructions == "" {
			out.Instructions = ecoCashInstructions(req.PayerHandle)
		}
	} else {
		out.RedirectURL = res.Get("browserurl")
		if out.RedirectURL == "" {
			return InitiateResult{}, unexpected(p.Name(), fmt.Errorf("browserurl missing"))
		}
	}
	return out, nil
}
