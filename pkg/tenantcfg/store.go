package tenantcfg

import (
	"log/slog"
	"sync/atomic"

	"github.com/LucasEdu07/friday-agents/pkg/cors"
	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/ratelimit"
)

// Store serves the loaded configurations to the pipeline. Reads are lock
// free; Reload swaps the whole set atomically.
type Store struct {
	loader  *Loader
	log     *slog.Logger
	configs atomic.Pointer[map[string]*TenantConfig]
}

// NewStore creates an empty store. Call Reload to populate it.
func NewStore(loader *Loader, log *slog.Logger) *Store {
	s := &Store{loader: loader, log: log}
	empty := map[string]*TenantConfig{}
	s.configs.Store(&empty)
	return s
}

// Loader returns the underlying loader.
func (s *Store) Loader() *Loader { return s.loader }

// Reload validates every file and swaps them in. On error the current set is
// kept. It returns the number of loaded tenants.
func (s *Store) Reload() (int, error) {
	next, err := s.loader.LoadAll()
	if err != nil {
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		s.log.Error("failed to reload tenant config, keeping current", "dir", s.loader.Dir, "error", err)
		return 0, err
	}
	s.configs.Store(&next)
	metrics.ConfigReloads.WithLabelValues("ok").Inc()
	s.log.Info("tenant config reloaded", "dir", s.loader.Dir, "tenants", len(next))
	return len(next), nil
}

// Get returns the configuration of tenantID.
func (s *Store) Get(tenantID string) (*TenantConfig, bool) {
	cfg, ok := (*s.configs.Load())[tenantID]
	return cfg, ok
}

// CorsPolicy implements cors.PolicySource.
func (s *Store) CorsPolicy(tenantID string) cors.Policy {
	cfg, ok := s.Get(tenantID)
	if !ok {
		return cors.Policy{}
	}
	return cors.Policy{AllowedOrigins: cfg.CORS.Origins}
}

// RateLimitRules implements ratelimit.RulesSource.
func (s *Store) RateLimitRules(tenantID string) ratelimit.Rules {
	cfg, ok := s.Get(tenantID)
	if !ok {
		return ratelimit.Rules{}
	}
	return cfg.RateLimit
}
