// Package reqctx holds the per-request scope threaded through the gateway
// pipeline: the correlation id and the resolved tenant.
//
// A Scope is created by the outermost stage and passed down by pointer inside
// the request's context.Context, so later stages and handlers read the tenant
// without resolving it again. Nothing here is global: each request owns its
// own Scope.
package reqctx

import (
	"context"
	"sync"

	"github.com/LucasEdu07/friday-agents/pkg/tenant"
)

type scopeKey struct{}

// Scope is the request-scoped state. Safe for concurrent use by the goroutines
// serving one request.
type Scope struct {
	RequestID string

	protected bool

	mu     sync.RWMutex
	tenant *tenant.Identity
	ended  bool
}

// Begin attaches a new Scope to ctx.
func Begin(ctx context.Context, requestID string) (context.Context, *Scope) {
	s := &Scope{RequestID: requestID}
	return context.WithValue(ctx, scopeKey{}, s), s
}

// FromContext returns the Scope of the request, or nil outside the pipeline.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// SetProtected records the route classification.
func (s *Scope) SetProtected(protected bool) {
	s.mu.Lock()
	s.protected = protected
	s.mu.Unlock()
}

// Protected reports whether the route requires a tenant.
func (s *Scope) Protected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protected
}

// SetTenant stores the resolved identity. It is a no-op once the scope ended.
func (s *Scope) SetTenant(id tenant.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.tenant = &id
}

// Tenant returns a copy of the resolved identity.
func (s *Scope) Tenant() (tenant.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tenant == nil {
		return tenant.Identity{}, false
	}
	return *s.tenant, true
}

// TenantID returns the resolved tenant id or "".
func (s *Scope) TenantID() string {
	id, _ := s.Tenant()
	return id.ID
}

// End clears the tenant slot. Safe to call more than once.
func (s *Scope) End() {
	s.mu.Lock()
	s.tenant = nil
	s.ended = true
	s.mu.Unlock()
}

// CurrentTenant returns the tenant resolved for the request carried by ctx.
func CurrentTenant(ctx context.Context) (tenant.Identity, bool) {
	if s := FromContext(ctx); s != nil {
		return s.Tenant()
	}
	return tenant.Identity{}, false
}

// RequestID returns the correlation id of the request carried by ctx.
func RequestID(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.RequestID
	}
	return ""
}
