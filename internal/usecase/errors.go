package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// クライアントに返す機械可読なエラーコード
const (
	CodeValidation           = "validation_error"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeRateLimited          = "rate_limited"
	CodeProviderUnavailable  = "provider_unavailable"
	CodeInvalidSignature     = "invalid_signature"
	CodeNotFound             = "not_found"
	CodeConflict             = "conflict"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeInternal             = "internal_error"
)

// Message はそのままクライアントに返すので内部の詳細を入れない。
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func ValidationError(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

func NotFoundError(message string) error {
	return NewHTTPError(http.StatusNotFound, message)
}

func ConflictError(message string) error {
	return NewHTTPError(http.StatusConflict, message)
}

func ProviderUnavailableError(message string) error {
	return NewHTTPError(http.StatusServiceUnavailable, message)
}

// SignatureError は偽造/改ざんされたwebhook。状態は一切変えない。
func SignatureError(message string) error {
	return &HTTPError{Status: http.StatusForbidden, Code: CodeInvalidSignature, Message: message}
}

func InternalError() error {
	return NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// dbError は原因をログに残してから汎用の500を返す。レスポンスには原因を出さない。
func dbError(log *slog.Logger, msg string, err error, args ...any) error {
	if log != nil {
		log.Error(msg, append(args, "err", err)...)
	}
	return NewHTTPError(http.StatusInternalServerError, "db error")
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnsupportedMediaType:
		return CodeUnsupportedMediaType
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeProviderUnavailable
	default:
		return CodeInternal
	}
}
