// Package signature はプロバイダwebhookの署名を検証する。
// 方式（ソート済みパラメータのハッシュ / 生ボディのHMAC）ごとに Verifier を実装する。
package signature

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrMissingSignature   = errors.New("signature is missing")
	ErrInvalidSignature   = errors.New("signature does not match")
	ErrUnsignedNotAllowed = errors.New("unsigned webhooks are not allowed")
)

type Verifier interface {
	Verify(rawBody []byte, signature, secret string) bool
	Sign(rawBody []byte, secret string) (string, error)
}

// Check は検証ポリシーをまとめたもの。
//   - secret あり: 署名必須で一致が必要
//   - secret なし: allowUnsigned が明示的に true のときだけ通す
func Check(v Verifier, rawBody []byte, sig, secret string, allowUnsigned bool) error {
	if secret == "" {
		if allowUnsigned {
			return nil
		}
		return ErrUnsignedNotAllowed
	}
	if strings.TrimSpace(sig) == "" {
		return ErrMissingSignature
	}
	if !v.Verify(rawBody, sig, secret) {
		return ErrInvalidSignature
	}
	return nil
}

// hex 同士を大文字小文字を無視して定数時間で比べる
func equalHex(expected, given string) bool {
	e := []byte(strings.ToLower(expected))
	g := []byte(strings.ToLower(strings.TrimSpace(given)))
	return subtle.ConstantTimeCompare(e, g) == 1
}
