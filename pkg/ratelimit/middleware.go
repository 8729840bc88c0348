package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// RulesSource supplies a tenant's rate-limit settings. A tenant without
// configuration gets the zero Rules, which resolves to SystemDefault.
type RulesSource interface {
	RateLimitRules(tenantID string) Rules
}

// Middleware admits protected requests of a resolved tenant. Denied requests
// get 429 with the tenant id in the body and never reach next.
func Middleware(l *Limiter, src RulesSource, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := reqctx.FromContext(r.Context())
			if scope == nil || !scope.Protected() {
				next.ServeHTTP(w, r)
				return
			}
			tenantID := scope.TenantID()
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}

			var rules Rules
			if src != nil {
				rules = src.RateLimitRules(tenantID)
			}
			route := r.URL.Path
			d := l.Admit(tenantID, route, Resolve(route, rules))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			if !d.Allowed {
				metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
				metrics.RecordRejection(string(types.KindRateLimited))
				log.WarnContext(r.Context(), "request rate limited",
					"request_id", scope.RequestID,
					"tenant_id", tenantID,
					"route", route,
					"reason", types.KindRateLimited,
				)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
				types.ErrRateLimited(tenantID).WriteJSON(w)
				return
			}

			metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d Decision) int {
	return max(1, int(math.Ceil(d.RetryAfter.Seconds())))
}
