package pipeline

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTenantID  = "X-Tenant-Id"
)

// requestIDFrom keeps a UUID-shaped inbound id and replaces anything else.
func requestIDFrom(r *http.Request) string {
	in := r.Header.Get(HeaderRequestID)
	if len(in) == 36 && uuid.Validate(in) == nil {
		return in
	}
	return uuid.NewString()
}

// RequestID is the outermost stage. It opens the request scope, classifies
// the route, stamps X-Request-Id (and X-Tenant-Id once resolved) on every
// response, turns handler panics into a 500, writes the access log and
// closes the scope on every exit path.
func RequestID(routes Routes, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, scope := reqctx.Begin(r.Context(), requestIDFrom(r))
			defer scope.End()

			class := routes.Classify(r.Method, r.URL.Path)
			scope.SetProtected(class == ClassProtected)

			span := trace.SpanFromContext(ctx)
			span.SetAttributes(attribute.String("request.id", scope.RequestID))

			fw := &finalizingWriter{ResponseWriter: w, scope: scope}

			defer func() {
				rec := recover()
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				tenantID := scope.TenantID()
				attrs := []any{
					"request_id", scope.RequestID,
					"tenant_id", tenantID,
					"method", r.Method,
					"path", r.URL.Path,
				}

				if rec != nil {
					metrics.Panics.Inc()
					if !fw.wroteHeader {
						types.ErrInternal().WriteJSON(fw)
					}
					log.ErrorContext(ctx, "request.error", append(attrs,
						"status", fw.Status(),
						"duration_ms", time.Since(start).Milliseconds(),
						"reason", types.KindHandlerError,
						"panic", rec,
						"stack", string(debug.Stack()),
					)...)
				}

				fw.finalize()
				if tenantID != "" {
					span.SetAttributes(attribute.String("tenant.id", tenantID))
				}
				d := time.Since(start)
				metrics.RecordRequest(r.Method, string(class), fw.Status(), d)
				log.InfoContext(ctx, "request.end", append(attrs,
					"status", fw.Status(),
					"duration_ms", d.Milliseconds(),
				)...)
			}()

			next.ServeHTTP(fw, r.WithContext(ctx))
		})
	}
}

// finalizingWriter stamps correlation headers right before the status line
// goes out, so every response carries them, short-circuits included.
type finalizingWriter struct {
	http.ResponseWriter
	scope       *reqctx.Scope
	status      int
	wroteHeader bool
}

func (w *finalizingWriter) stamp() {
	h := w.ResponseWriter.Header()
	h.Set(HeaderRequestID, w.scope.RequestID)
	if id := w.scope.TenantID(); id != "" {
		h.Set(HeaderTenantID, id)
	}
}

func (w *finalizingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.stamp()
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *finalizingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports http.Flusher.
func (w *finalizingWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *finalizingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// finalize commits an empty 200 when the handler wrote nothing.
func (w *finalizingWriter) finalize() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

// Status is the committed status code.
func (w *finalizingWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
