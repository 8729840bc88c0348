// Package auth implements the tenant resolution stage: it turns the request's
// API key into a tenant identity and stores it in the request scope.
package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// ResolveTenant returns middleware that authenticates protected requests.
//
//	missing key             → 401
//	unknown or inactive key → 403
//	directory unavailable   → 503
//
// Public requests pass through without touching the directory.
func ResolveTenant(dir tenant.Directory, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := reqctx.FromContext(ctx)
			if scope == nil || !scope.Protected() {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := FromRequest(r)
			if apiKey == "" {
				reject(w, r, log, scope, types.ErrCredentialMissing(), nil)
				return
			}

			start := time.Now()
			id, err := dir.Resolve(ctx, apiKey)
			metrics.DirectoryLatency.Observe(time.Since(start).Seconds())

			outcome := tenant.Classify(id, err)
			metrics.Resolutions.WithLabelValues(string(outcome)).Inc()

			switch outcome {
			case tenant.OutcomeUnavailable:
				reject(w, r, log, scope, types.ErrDirectoryUnavailable(), err)
				return
			case tenant.OutcomeNotFound:
				reject(w, r, log, scope, types.ErrCredentialInvalid(), nil)
				return
			}

			scope.SetTenant(*id)
			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, log *slog.Logger, scope *reqctx.Scope, apiErr *types.APIError, cause error) {
	metrics.RecordRejection(string(apiErr.Kind))
	attrs := []any{
		"request_id", scope.RequestID,
		"path", r.URL.Path,
		"reason", apiErr.Kind,
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
		log.ErrorContext(r.Context(), "tenant resolution failed", attrs...)
	} else {
		log.WarnContext(r.Context(), "tenant resolution rejected", attrs...)
	}
	apiErr.WriteJSON(w)
}
