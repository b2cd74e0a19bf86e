package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

const hmacPrefix = "sha256="

// HMACHex は生のJSONボディに対する HMAC の hex（EcoCash / ZB の X-Signature）。
// ボディは受け取ったバイト列そのままを使う（再シリアライズしない）。
type HMACHex struct {
	Digest func() hash.Hash
}

func NewHMACSHA256() HMACHex {
	return HMACHex{Digest: sha256.New}
}

func (h HMACHex) Verify(rawBody []byte, sig, secret string) bool {
	expected, err := h.Sign(rawBody, secret)
	if err != nil {
		return false
	}
	sig = strings.TrimSpace(sig)
	if len(sig) >= len(hmacPrefix) && strings.EqualFold(sig[:len(hmacPrefix)], hmacPrefix) {
		sig = sig[len(hmacPrefix):]
	}
	return equalHex(expected, sig)
}

func (h HMACHex) Sign(rawBody []byte, secret string) (string, error) {
	digest := h.Digest
	if digest == nil {
		digest = sha256.New
	}
	mac := hmac.New(digest, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
