// Package pipeline composes the gateway's request stages in their fixed
// order: request id, timeout, tenant resolution, rate limiting, CORS.
package pipeline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LucasEdu07/friday-agents/pkg/auth"
	"github.com/LucasEdu07/friday-agents/pkg/cors"
	"github.com/LucasEdu07/friday-agents/pkg/ratelimit"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
)

// DefaultTimeout bounds each request, directory lookups included.
const DefaultTimeout = 30 * time.Second

// Settings is the per-tenant configuration the limiter and CORS stages read.
type Settings interface {
	ratelimit.RulesSource
	cors.PolicySource
}

// Options wires the stages. Directory and Settings are required.
type Options struct {
	Directory tenant.Directory
	Settings  Settings
	Limiter   *ratelimit.Limiter
	Routes    Routes
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Pipeline is the ordered stage list built from Options.
type Pipeline struct {
	stages []func(http.Handler) http.Handler
}

// New fills defaults and builds the stages.
func New(opts Options) *Pipeline {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.Routes.ProtectedPrefix == "" {
		opts.Routes = DefaultRoutes()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger

	return &Pipeline{stages: []func(http.Handler) http.Handler{
		RequestID(opts.Routes, log),
		middleware.RealIP,
		middleware.Timeout(opts.Timeout),
		auth.ResolveTenant(opts.Directory, log),
		ratelimit.Middleware(opts.Limiter, opts.Settings, log),
		cors.Middleware(opts.Settings, log),
	}}
}

// Use installs the stages on a chi router. Call it before registering routes.
func (p *Pipeline) Use(r chi.Router) {
	r.Use(p.stages...)
}

// Wrap applies the stages around h, outermost first.
func (p *Pipeline) Wrap(h http.Handler) http.Handler {
	for i := len(p.stages) - 1; i >= 0; i-- {
		h = p.stages[i](h)
	}
	return h
}
