// Package cors enforces per-tenant origin allow-lists.
//
// Evaluate is pure: it turns a policy and the request's CORS inputs into a
// decision and the headers to set. Middleware applies it to requests that
// already carry a resolved tenant.
package cors

import (
	"net/http"
	"strings"
)

// AllowedMethods is advertised on every preflight answer.
const AllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"

// Policy is a tenant's CORS configuration. Origins match exactly.
type Policy struct {
	AllowedOrigins []string
}

// Allows reports whether origin is an exact member of the allow-list.
func (p Policy) Allows(origin string) bool {
	for _, o := range p.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Action is the outcome of Evaluate.
type Action int

const (
	// Pass means no Origin header: proceed without CORS headers.
	Pass Action = iota
	// Allow means proceed and attach Headers to the response.
	Allow
	// Preflight means answer 204 with Headers and stop.
	Preflight
	// Reject means answer 403.
	Reject
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Preflight:
		return "preflight"
	case Reject:
		return "reject"
	}
	return "pass"
}

// Decision is an Action with the headers it implies.
type Decision struct {
	Action  Action
	Headers http.Header
}

// Evaluate decides how to treat a request from origin. requestedHeaders is
// the raw Access-Control-Request-Headers value.
func Evaluate(p Policy, origin, method, requestedHeaders string) Decision {
	if origin == "" {
		return Decision{Action: Pass}
	}
	if !p.Allows(origin) {
		return Decision{Action: Reject}
	}

	h := http.Header{}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Vary", "Origin")

	if method != http.MethodOptions {
		return Decision{Action: Allow, Headers: h}
	}

	h.Set("Access-Control-Allow-Methods", AllowedMethods)
	if rh := strings.TrimSpace(requestedHeaders); rh != "" {
		h.Set("Access-Control-Allow-Headers", rh)
	} else {
		h.Set("Access-Control-Allow-Headers", "*")
	}
	return Decision{Action: Preflight, Headers: h}
}
