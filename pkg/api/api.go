// Package api holds the gateway's HTTP handlers: the tenant-facing /v1
// endpoints, the public ops endpoints and the dev-only admin routes.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/tenantcfg"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

const (
	maxBodyBytes       = 1 << 20 // 1 MB
	maxVisionBodyBytes = types.MaxImageB64Bytes + 4096
)

// Check is one readiness probe. A nil error means ready.
type Check func(ctx context.Context) error

// Server carries the handler dependencies. Keys, Provisioner and
// OnKeysChanged are optional.
type Server struct {
	Service      string
	Version      string
	Configs      *tenantcfg.Store
	Directory    tenant.Directory
	Keys         keys.Admin
	Provisioner  *tenantcfg.Provisioner
	Checks       map[string]Check
	AdminEnabled bool
	// OnKeysChanged runs after a revoke or rotate so cached lookups of the
	// old key stop resolving.
	OnKeysChanged func()
	Log           *slog.Logger
}

// Routes registers every endpoint on r. The pipeline must already be
// installed on r.
func (s *Server) Routes(r chi.Router) {
	r.Use(answerOptions)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/readiness", s.handleReadiness)
	r.Get("/docs", s.handleDocs)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/debug/whoami", s.handleWhoAmI)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/vision/analyze", s.handleVisionAnalyze)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminGate)
		r.Get("/tenants", s.handleListTenants)
		r.Get("/tenants/{id}/keys", s.handleListKeys)
		r.Post("/tenants/{id}/keys", s.handleCreateKey)
		r.Post("/tenants/{id}/keys:rotate", s.handleRotateKey)
		r.Post("/tenants/{id}/keys:revoke", s.handleRevokeKey)
		r.Post("/reload-config", s.handleReloadConfig)
		r.Post("/sync-configs", s.handleSyncConfigs)
	})
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// decode reads a JSON body capped at limit bytes.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) *types.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.ErrBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
