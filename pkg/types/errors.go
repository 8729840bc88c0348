// Package types holds the wire shapes shared by the gateway stages and handlers.
package types

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// ──────────────────────────────────────────────────────────────────────────────
// Error taxonomy
// ──────────────────────────────────────────────────────────────────────────────

// Kind classifies a pipeline failure for logs and metrics. It is never
// serialised to callers.
type Kind string

const (
	KindCredentialMissing    Kind = "credential_missing"
	KindCredentialInvalid    Kind = "credential_invalid"
	KindDirectoryUnavailable Kind = "directory_unavailable"
	KindRateLimited          Kind = "rate_limited"
	KindOriginNotAllowed     Kind = "origin_not_allowed"
	KindHandlerError         Kind = "handler_error"
	KindBadRequest           Kind = "bad_request"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
)

// ──────────────────────────────────────────────────────────────────────────────
// APIError: the JSON body every error response carries
// ──────────────────────────────────────────────────────────────────────────────

// APIError is written as {"detail": "..."}; Tenant is only present on
// rate-limit rejections.
type APIError struct {
	Detail   string `json:"detail"`
	Tenant   string `json:"tenant,omitempty"`
	Kind     Kind   `json:"-"`
	HTTPCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d %s] %s", e.HTTPCode, e.Kind, e.Detail)
}

// WriteJSON writes the error as JSON to the response writer.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	WriteJSON(w, e.HTTPCode, e)
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ──────────────────────────────────────────────────────────────────────────────
// Common error constructors
// ──────────────────────────────────────────────────────────────────────────────

func ErrCredentialMissing() *APIError {
	return &APIError{Detail: "x-api-key is required", Kind: KindCredentialMissing, HTTPCode: http.StatusUnauthorized}
}

func ErrCredentialInvalid() *APIError {
	return &APIError{Detail: "Invalid API key", Kind: KindCredentialInvalid, HTTPCode: http.StatusForbidden}
}

func ErrDirectoryUnavailable() *APIError {
	return &APIError{Detail: "Tenant repository unavailable", Kind: KindDirectoryUnavailable, HTTPCode: http.StatusServiceUnavailable}
}

func ErrRateLimited(tenantID string) *APIError {
	return &APIError{Detail: "Too Many Requests", Tenant: tenantID, Kind: KindRateLimited, HTTPCode: http.StatusTooManyRequests}
}

func ErrOriginNotAllowed() *APIError {
	return &APIError{Detail: "CORS origin não permitida", Kind: KindOriginNotAllowed, HTTPCode: http.StatusForbidden}
}

func ErrInternal() *APIError {
	return &APIError{Detail: "Internal Server Error", Kind: KindHandlerError, HTTPCode: http.StatusInternalServerError}
}

func ErrBadRequest(msg string) *APIError {
	return &APIError{Detail: msg, Kind: KindBadRequest, HTTPCode: http.StatusBadRequest}
}

func ErrForbidden(msg string) *APIError {
	return &APIError{Detail: msg, Kind: KindForbidden, HTTPCode: http.StatusForbidden}
}

func ErrNotFound(msg string) *APIError {
	return &APIError{Detail: msg, Kind: KindNotFound, HTTPCode: http.StatusNotFound}
}
