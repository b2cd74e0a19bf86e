package middleware

import (
	"net/http"
	"strings"
)

const AnonymousClient = "anonymous"

// ClientID はレート制限のキー。X-Forwarded-For の先頭 → X-Real-IP → anonymous の順。
func ClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return AnonymousClient
}
