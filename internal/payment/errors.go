package payment

import (
	"errors"
	"fmt"

	"storefront/internal/domain/model"
)

type ErrorKind string

const (
	KindInvalid     ErrorKind = "invalid"     // 呼び出し側の入力が悪い（400）
	KindUnavailable ErrorKind = "unavailable" // 未設定 or 到達できない（503）
	KindUnexpected  ErrorKind = "unexpected"  // それ以外（500）
)

// InitiationError はプロバイダ固有のエラーを1つの形に包む。
// Reason はクライアントに見せてよい短い文。原因は Err に残す。
type InitiationError struct {
	Provider model.PaymentProvider
	Kind     ErrorKind
	Reason   string
	Err      error
}

func (e *InitiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s %s: %s: %v", e.Provider, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment %s %s: %s", e.Provider, e.Kind, e.Reason)
}

func (e *InitiationError) Unwrap() error { return e.Err }

func AsInitiationError(err error) (*InitiationError, bool) {
	var ie *InitiationError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

func errInvalid(reason string) *InitiationError {
	return &InitiationError{Kind: KindInvalid, Reason: reason}
}

func withProvider(p model.PaymentProvider, err error) error {
	if ie, ok := AsInitiationError(err); ok && ie.Provider == "" {
		cp := *ie
		cp.Provider = p
		return &cp
	}
	return err
}

func unavailable(p model.PaymentProvider, err error) *InitiationError {
	return &InitiationError{Provider: p, Kind: KindUnavailable, Reason: "Payment provider is currently unavailable", Err: err}
}

func unexpected(p model.PaymentProvider, err error) *InitiationError {
	return &InitiationError{Provider: p, Kind: KindUnexpected, Reason: "Payment could not be initiated", Err: err}
}

func rejected(p model.PaymentProvider, reason string) *InitiationError {
	if reason == "" {
		reason = "Payment was rejected by the provider"
	}
	return &InitiationError{Provider: p, Kind: KindInvalid, Reason: reason}
}
