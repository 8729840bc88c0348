package auth

import (
	"net/http"
	"strings"
)

// HeaderAPIKey carries the tenant credential. Header lookup is
// case-insensitive.
const HeaderAPIKey = "X-API-Key"

// FromRequest returns the trimmed API key, or "" when absent.
func FromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey))
}
