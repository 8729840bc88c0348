package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/LucasEdu07/friday-agents/pkg/cors"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

const readinessTimeout = 2 * time.Second

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	types.WriteJSON(w, http.StatusOK, map[string]string{
		"service": s.Service,
		"version": s.Version,
		"docs":    "/docs",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	types.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": s.Service})
}

// handleReadiness runs every registered check. Any failure turns the whole
// probe into a 503; the per-check map says which one.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.Checks[name](ctx); err != nil {
			s.logger().WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			checks[name] = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}
	types.WriteJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// answerOptions ends every OPTIONS request with 204 before routing. OPTIONS
// is public, so no tenant is known here and no origin is echoed.
func answerOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", cors.AllowedMethods)
		w.WriteHeader(http.StatusNoContent)
	})
}

const docsPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
<p>Every <code>/v1</code> endpoint requires an <code>x-api-key</code> header.</p>
<p>Schema: <a href="/openapi.json">/openapi.json</a></p>
</body>
</html>
`

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, docsPage, s.Service, s.Service)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	types.WriteJSON(w, http.StatusOK, openAPIDocument(s.Service, s.Version))
}
