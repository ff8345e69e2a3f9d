package usage

import (
	"net/http"
	"strings"
)

// UnknownIdentity is used when no proxy header names the caller.
const UnknownIdentity = "unknown"

// ClientIdentity approximates the caller by network address as reported by
// the fronting proxy: first X-Forwarded-For hop, else X-Real-IP, else
// "unknown". Headers are caller-controlled; this is not authentication.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return UnknownIdentity
}
