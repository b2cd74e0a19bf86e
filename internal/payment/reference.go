package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewReference は PREFIX-XXXXXXXXXXXX 形式のランダムな参照番号を作る。
func NewReference(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(id[:12])
}

// mockReference は同じ依頼なら同じ参照番号になる。
func mockReference(prefix string, req InitiateRequest) string {
	h := sha256.New()
	for _, part := range []string{prefix, req.Amount.StringFixed(2), req.Currency, req.PayerHandle, req.OrderRef} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(h.Sum(nil))[:12])
}
