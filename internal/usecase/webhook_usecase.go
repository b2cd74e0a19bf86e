package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/payment"
	"storefront/internal/payment/signature"
	repo "storefront/internal/repository"
)

// WebhookResult はプロバイダに返す前の処理結果（ログとテスト用）。
// どれでもプロバイダへの応答は 200。
type WebhookResult string

const (
	WebhookApplied          WebhookResult = "applied"
	WebhookDuplicate        WebhookResult = "duplicate"
	WebhookIgnored          WebhookResult = "ignored"
	WebhookUnknownReference WebhookResult = "unknown_reference"
)

type WebhookUsecase struct {
	tx        repo.TransactionManager
	providers ProviderLookup
	log       *slog.Logger
}

func NewWebhookUsecase(tx repo.TransactionManager, providers ProviderLookup, log *slog.Logger) *WebhookUsecase {
	return &WebhookUsecase{tx: tx, providers: providers, log: log}
}

type ConfirmPaymentInput struct {
	Provider string
	Header   http.Header
	RawBody  []byte
}

// Confirm は署名検証 → 解釈 → 条件付き遷移の順。署名が通らなければストアには触らない。
func (u *WebhookUsecase) Confirm(ctx context.Context, in ConfirmPaymentInput) (WebhookResult, error) {
	provider, ok := model.ParsePaymentProvider(strings.ToLower(strings.TrimSpace(in.Provider)))
	if !ok {
		return "", NotFoundError("unknown payment provider")
	}
	entry, ok := u.providers.Lookup(provider)
	if !ok {
		return "", NotFoundError("unknown payment provider")
	}

	hook := entry.Webhook
	sig := hook.Signature(in.Header, in.RawBody)
	if err := signature.Check(hook.Verifier(), in.RawBody, sig, entry.Secret, entry.AllowUnsigned); err != nil {
		u.logWarn("webhook signature rejected", "provider", provider, "err", err)
		return "", SignatureError("invalid signature")
	}

	cb, err := hook.Parse(in.RawBody)
	if err != nil {
		u.logWarn("webhook body rejected", "provider", provider, "err", err)
		return "", ValidationError("invalid webhook payload")
	}

	if cb.Outcome == payment.OutcomePending {
		u.logInfo("webhook status not final", "provider", provider, "reference", cb.Reference, "status", cb.RawStatus)
		return WebhookIgnored, nil
	}

	var result WebhookResult
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res, err := u.apply(ctx, r, provider, cb)
		result = res
		return err
	})
	if err != nil {
		u.logError("webhook apply failed", err, "provider", provider, "reference", cb.Reference)
		return "", InternalError()
	}

	u.logInfo("webhook processed",
		"provider", provider,
		"reference", cb.Reference,
		"status", cb.RawStatus,
		"result", result,
	)
	return result, nil
}

func (u *WebhookUsecase) apply(ctx context.Context, r repo.TxRepos, provider model.PaymentProvider, cb payment.Callback) (WebhookResult, error) {
	now := time.Now()
	actor := model.WebhookActor(provider)

	attemptTo := model.AttemptStatusConfirmed
	orderTo := model.PaymentStatusPaid
	if cb.Outcome == payment.OutcomeFailed {
		attemptTo = model.AttemptStatusRejected
		orderTo = model.PaymentStatusFailed
	}

	var attempt *model.PaymentAttempt
	a, err := r.PaymentAttempts().FindByReference(ctx, cb.Reference)
	switch {
	case err == nil:
		if a.Provider != provider {
			return WebhookUnknownReference, nil
		}
		attempt = &a
	case errors.Is(err, repo.ErrNotFound):
	default:
		return "", err
	}

	//試行が無ければ注文の参照番号として扱う
	orderRef := cb.Reference
	if attempt != nil {
		orderRef = attempt.OrderReference
	}

	var order *model.Order
	if orderRef != "" {
		o, err := r.Orders().FindByReference(ctx, orderRef)
		switch {
		case err == nil:
			switch {
			case o.Payment.Method != model.PaymentMethodNow:
				if attempt == nil {
					return WebhookUnknownReference, nil
				}
			case attempt != nil:
				//試行経由なら注文の現在のプロバイダは見ない（別の試行で上書きされている場合がある）
				order = &o
			case o.Payment.Provider != provider:
				return WebhookUnknownReference, nil
			default:
				order = &o
			}
		case errors.Is(err, repo.ErrNotFound):
		default:
			return "", err
		}
	}

	if attempt == nil && order == nil {
		u.logWarn("webhook for unknown reference", "provider", provider, "reference", cb.Reference)
		return WebhookUnknownReference, nil
	}

	if cb.Amount != nil {
		expected := attempt
		if (expected != nil && !cb.Amount.Equal(expected.Amount)) || (expected == nil && !cb.Amount.Equal(order.Total)) {
			u.logWarn("webhook amount mismatch",
				"provider", provider,
				"reference", cb.Reference,
				"amount", cb.Amount.StringFixed(2),
			)
			return WebhookIgnored, nil
		}
	}

	applied := false

	if attempt != nil {
		changed, err := r.PaymentAttempts().TransitionStatus(ctx, attempt.Reference, model.AttemptStatusPending, attemptTo, now)
		if err != nil {
			return "", err
		}
		if changed {
			applied = true
			if err := writeAudit(ctx, r, actor, model.AuditActionUpdateAttemptStatus, model.AuditResourcePaymentAttempt,
				attempt.Reference, string(model.AttemptStatusPending), string(attemptTo), cb, now); err != nil {
				return "", err
			}
		}
	}

	if order != nil && attempt != nil && order.Payment.ProviderReference != attempt.Reference {
		if cb.Outcome == payment.OutcomeFailed {
			//差し替え済みの古い試行の失敗で注文を失敗にしない
			u.logInfo("rejected attempt is not attached to order",
				"provider", provider, "reference", attempt.Reference, "order", order.Reference)
			order = nil
		} else {
			//実際に支払われた試行を注文に付け直す
			if _, err := r.Orders().AttachPayment(ctx, order.Reference, attempt.Provider, attempt.Reference, attempt.MerchantCode, now); err != nil {
				return "", err
			}
		}
	}

	if order != nil {
		changed, err := r.Orders().TransitionPaymentStatus(ctx, order.Reference, model.PaymentStatusPending, orderTo, now)
		if err != nil {
			return "", err
		}
		if changed {
			applied = true
			if err := writeAudit(ctx, r, actor, model.AuditActionUpdatePaymentStatus, model.AuditResourceOrder,
				order.Reference, string(model.PaymentStatusPending), string(orderTo), cb, now); err != nil {
				return "", err
			}
		}
	}

	if !applied {
		return WebhookDuplicate, nil
	}
	return WebhookApplied, nil
}

type statusSnapshot struct {
	Status            string `json:"status"`
	RawStatus         string `json:"raw_status,omitempty"`
	ProviderReference string `json:"provider_reference,omitempty"`
}

func writeAudit(ctx context.Context, r repo.TxRepos, actor string, action model.AuditAction, resType model.AuditResourceType, resID, from, to string, cb payment.Callback, at time.Time) error {
	beforeJSON, err := json.Marshal(statusSnapshot{Status: from})
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(statusSnapshot{Status: to, RawStatus: cb.RawStatus, ProviderReference: cb.ProviderReference})
	if err != nil {
		return err
	}
	return r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: resType,
		ResourceID:   resID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    at,
	})
}

func (u *WebhookUsecase) logInfo(msg string, args ...any) {
	if u.log != nil {
		u.log.Info(msg, args...)
	}
}

func (u *WebhookUsecase) logWarn(msg string, args ...any) {
	if u.log != nil {
		u.log.Warn(msg, args...)
	}
}

func (u *WebhookUsecase) logError(msg string, err error, args ...any) {
	if u.log != nil {
		u.log.Error(msg, append(args, "err", err)...)
	}
}
