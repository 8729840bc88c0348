package cors

import (
	"log/slog"
	"net/http"

	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// PolicySource supplies a tenant's CORS policy. A tenant without
// configuration gets the zero Policy, which allows no origin.
type PolicySource interface {
	CorsPolicy(tenantID string) Policy
}

// Middleware enforces the resolved tenant's policy. Requests without a
// resolved tenant, or outside the protected namespace, pass untouched.
func Middleware(src PolicySource, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := reqctx.FromContext(r.Context())
			if scope == nil {
				next.ServeHTTP(w, r)
				return
			}
			tenantID := scope.TenantID()
			if !scope.Protected() || tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}

			var policy Policy
			if src != nil {
				policy = src.CorsPolicy(tenantID)
			}
			origin := r.Header.Get("Origin")
			d := Evaluate(policy, origin, r.Method, r.Header.Get("Access-Control-Request-Headers"))
			if d.Action != Pass {
				metrics.CorsDecisions.WithLabelValues(d.Action.String()).Inc()
			}

			switch d.Action {
			case Reject:
				metrics.RecordRejection(string(types.KindOriginNotAllowed))
				log.WarnContext(r.Context(), "origin not allowed",
					"request_id", scope.RequestID,
					"tenant_id", tenantID,
					"origin", origin,
					"reason", types.KindOriginNotAllowed,
				)
				types.ErrOriginNotAllowed().WriteJSON(w)
				return
			case Preflight:
				copyHeaders(w.Header(), d.Headers)
				w.WriteHeader(http.StatusNoContent)
				return
			case Allow:
				// Set before next so they are on the wire whenever the handler
				// first writes.
				copyHeaders(w.Header(), d.Headers)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			if k == "Vary" {
				dst.Add(k, v)
				continue
			}
			dst.Set(k, v)
		}
	}
}
