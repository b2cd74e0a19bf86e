package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/payment"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 応答前の保存はクライアント切断と切り離して行う
const persistTimeout = 10 * time.Second

// ProviderLookup は payment.Registry を想定。
type ProviderLookup interface {
	Lookup(p model.PaymentProvider) (payment.Entry, bool)
}

type PaymentUsecase struct {
	tx                  repo.TransactionManager
	providers           ProviderLookup
	defaultMerchantCode string
	log                 *slog.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, providers ProviderLookup, defaultMerchantCode string, log *slog.Logger) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, providers: providers, defaultMerchantCode: defaultMerchantCode, log: log}
}

type InitiatePaymentInput struct {
	Provider       string
	Amount         decimal.Decimal
	PhoneNumber    string
	Currency       string
	Metadata       map[string]any
	OrderID        string
	IdempotencyKey string
}

type InitiatePaymentOutput struct {
	Reference    string
	MerchantCode string
	RedirectURL  string
	Instructions string
	Replayed     bool
}

// Initiate は1回の論理リクエストにつきアダプタを高々1回だけ呼ぶ。
func (u *PaymentUsecase) Initiate(ctx context.Context, in InitiatePaymentInput) (InitiatePaymentOutput, error) {
	req, err := payment.InitiateRequest{
		Amount:      in.Amount,
		PayerHandle: in.PhoneNumber,
		Currency:    in.Currency,
		Metadata:    in.Metadata,
		OrderRef:    in.OrderID,
	}.Normalize()
	if err != nil {
		ie, _ := payment.AsInitiationError(err)
		return InitiatePaymentOutput{}, ValidationError(ie.Reason)
	}

	provider, ok := model.ParsePaymentProvider(strings.ToLower(strings.TrimSpace(in.Provider)))
	if !ok {
		return InitiatePaymentOutput{}, NotFoundError("unknown payment provider")
	}
	entry, ok := u.providers.Lookup(provider)
	if !ok {
		return InitiatePaymentOutput{}, NotFoundError("unknown payment provider")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return InitiatePaymentOutput{}, ValidationError("invalid idempotency key")
	}

	var linked *model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if key != "" {
			existing, found, err := r.PaymentAttempts().FindByIdempotencyKey(ctx, provider, key)
			if err != nil {
				return err
			}
			if found {
				return replayOf(existing, req)
			}
		}

		if req.OrderRef == "" {
			return nil
		}
		o, err := r.Orders().FindByReference(ctx, req.OrderRef)
		if errors.Is(err, repo.ErrNotFound) {
			//外部で管理されている注文参照はそのまま通す
			return nil
		}
		if err != nil {
			return err
		}
		linked = &o
		return nil
	})

	var replay *replayError
	if errors.As(err, &replay) {
		if replay.mismatch {
			return InitiatePaymentOutput{}, ConflictError("idempotency key was already used for a different payment")
		}
		return replay.out, nil
	}
	if err != nil {
		u.logError("payment lookup failed", err, "provider", provider)
		return InitiatePaymentOutput{}, InternalError()
	}

	if linked != nil {
		if linked.Payment.Method != model.PaymentMethodNow || linked.Payment.Status != model.PaymentStatusPending {
			return InitiatePaymentOutput{}, ConflictError("order is not awaiting payment")
		}
		if !req.Amount.Equal(linked.Total) {
			return InitiatePaymentOutput{}, ValidationError("amount does not match the order total")
		}
		if in.Currency == "" {
			req.Currency = linked.Currency
		} else if req.Currency != linked.Currency {
			return InitiatePaymentOutput{}, ValidationError("currency does not match the order")
		}
	}

	res, err := entry.Provider.Initiate(ctx, req)
	if err != nil {
		return InitiatePaymentOutput{}, u.translateInitiationError(provider, err)
	}
	if res.MerchantCode == "" {
		res.MerchantCode = u.defaultMerchantCode
	}

	out := InitiatePaymentOutput{
		Reference:    res.Reference,
		MerchantCode: res.MerchantCode,
		RedirectURL:  res.RedirectURL,
		Instructions: res.Instructions,
	}

	metadataJSON := ""
	if len(req.Metadata) > 0 {
		b, err := json.Marshal(req.Metadata)
		if err != nil {
			return InitiatePaymentOutput{}, ValidationError("metadata must be a JSON object")
		}
		metadataJSON = string(b)
	}

	now := time.Now()
	attempt := model.PaymentAttempt{
		Reference:         res.Reference,
		Provider:          provider,
		OrderReference:    req.OrderRef,
		Amount:            req.Amount,
		Currency:          req.Currency,
		PayerHandle:       req.PayerHandle,
		MetadataJSON:      metadataJSON,
		Status:            model.AttemptStatusPending,
		MerchantCode:      res.MerchantCode,
		RedirectURL:       res.RedirectURL,
		Instructions:      res.Instructions,
		ProviderReference: res.ProviderReference,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if key != "" {
		attempt.IdempotencyKey = &key
	}

	//webhookより先にレコードが必要。クライアントが切断しても保存は続ける
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err = u.tx.WithinTx(persistCtx, func(r repo.TxRepos) error {
		if err := r.PaymentAttempts().Create(persistCtx, attempt); err != nil {
			if !errors.Is(err, repo.ErrConflict) {
				return err
			}
			return u.resolveAttemptConflict(persistCtx, r, attempt, key, req)
		}

		if linked != nil {
			attached, err := r.Orders().AttachPayment(persistCtx, linked.Reference, provider, attempt.Reference, attempt.MerchantCode, now)
			if err != nil {
				return err
			}
			if !attached {
				u.logWarn("order left pending before payment was attached", "reference", linked.Reference, "attempt", attempt.Reference)
			}
		}
		return nil
	})

	if errors.As(err, &replay) {
		if replay.mismatch {
			return InitiatePaymentOutput{}, ConflictError("payment was already processed")
		}
		return replay.out, nil
	}
	if err != nil {
		u.logError("persist payment attempt failed", err, "provider", provider, "reference", attempt.Reference)
		return InitiatePaymentOutput{}, InternalError()
	}

	if u.log != nil {
		u.log.Info("payment initiated",
			"provider", provider,
			"reference", attempt.Reference,
			"order", attempt.OrderReference,
			"amount", attempt.Amount.StringFixed(2),
		)
	}
	return out, nil
}

// 同じ参照番号/キーが既にある場合（同時リクエスト、mock の決定的参照番号）
func (u *PaymentUsecase) resolveAttemptConflict(ctx context.Context, r repo.TxRepos, attempt model.PaymentAttempt, key string, req payment.InitiateRequest) error {
	if key != "" {
		existing, found, err := r.PaymentAttempts().FindByIdempotencyKey(ctx, attempt.Provider, key)
		if err != nil {
			return err
		}
		if found {
			return replayOf(existing, req)
		}
	}

	existing, err := r.PaymentAttempts().FindByReference(ctx, attempt.Reference)
	if err != nil {
		return err
	}
	if existing.Status != model.AttemptStatusPending || existing.Provider != attempt.Provider {
		return &replayError{mismatch: true}
	}
	return replayOf(existing, req)
}

type replayError struct {
	out      InitiatePaymentOutput
	mismatch bool
}

func (e *replayError) Error() string { return "payment attempt replay" }

func replayOf(existing model.PaymentAttempt, req payment.InitiateRequest) error {
	if !existing.Amount.Equal(req.Amount) || existing.OrderReference != req.OrderRef {
		return &replayError{mismatch: true}
	}
	return &replayError{out: InitiatePaymentOutput{
		Reference:    existing.Reference,
		MerchantCode: existing.MerchantCode,
		RedirectURL:  existing.RedirectURL,
		Instructions: existing.Instructions,
		Replayed:     true,
	}}
}

func (u *PaymentUsecase) translateInitiationError(p model.PaymentProvider, err error) error {
	ie, ok := payment.AsInitiationError(err)
	if !ok {
		u.logError("payment initiation failed", err, "provider", p)
		return InternalError()
	}
	switch ie.Kind {
	case payment.KindInvalid:
		u.logWarn("payment rejected", "provider", p, "reason", ie.Reason)
		return ValidationError(ie.Reason)
	case payment.KindUnavailable:
		u.logError("payment provider unavailable", err, "provider", p)
		return ProviderUnavailableError(ie.Reason)
	default:
		u.logError("payment initiation failed", err, "provider", p)
		return InternalError()
	}
}

func (u *PaymentUsecase) logError(msg string, err error, args ...any) {
	if u.log == nil {
		return
	}
	u.log.Error(msg, append(args, "err", err)...)
}

func (u *PaymentUsecase) logWarn(msg string, args ...any) {
	if u.log == nil {
		return
	}
	u.log.Warn(msg, args...)
}
