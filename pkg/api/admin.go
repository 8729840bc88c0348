package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/LucasEdu07/friday-agents/pkg/keys"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// ──────────────────────────────────────────────────────────────────────────────
// Admin routes. They live outside /v1 and carry no tenant credential, so
// they are only mounted in development or when explicitly enabled.
// ──────────────────────────────────────────────────────────────────────────────

type keyRequest struct {
	Name     string `json:"name"`
	Previous string `json:"previous,omitempty"`
}

func (s *Server) adminGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.AdminEnabled {
			types.ErrForbidden("Admin routes disabled in this environment").WriteJSON(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func errKeysUnsupported() *types.APIError {
	return &types.APIError{
		Detail:   "Key management requires a database-backed tenant directory",
		Kind:     types.KindBadRequest,
		HTTPCode: http.StatusNotImplemented,
	}
}

// decodeOptional is decode for bodies that may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) *types.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return types.ErrBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// writeStoreError maps key store errors to responses.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, keys.ErrTenantNotFound) {
		types.ErrNotFound("Tenant not found").WriteJSON(w)
		return
	}
	s.logger().ErrorContext(r.Context(), "admin operation failed", "op", op, "error", err)
	types.ErrDirectoryUnavailable().WriteJSON(w)
}

func (s *Server) keysChanged() {
	if s.OnKeysChanged != nil {
		s.OnKeysChanged()
	}
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	list, err := s.Directory.ListAll(r.Context())
	if err != nil {
		s.logger().ErrorContext(r.Context(), "list tenants failed", "error", err)
		types.ErrDirectoryUnavailable().WriteJSON(w)
		return
	}
	if list == nil {
		list = []tenant.Summary{}
	}
	types.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if s.Keys == nil {
		errKeysUnsupported().WriteJSON(w)
		return
	}
	rows, err := s.Keys.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, "keys.list", err)
		return
	}
	if rows == nil {
		rows = []keys.Row{}
	}
	types.WriteJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	if s.Keys == nil {
		errKeysUnsupported().WriteJSON(w)
		return
	}
	var req keyRequest
	if apiErr := decodeOptional(w, r, &req); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	issued, err := s.Keys.Create(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeStoreError(w, r, "keys.create", err)
		return
	}
	s.logger().InfoContext(r.Context(), "api key created", "tenant_id", issued.TenantID, "name", issued.Name)
	types.WriteJSON(w, http.StatusCreated, issued)
}

func (s *Server) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	if s.Keys == nil {
		errKeysUnsupported().WriteJSON(w)
		return
	}
	var req keyRequest
	if apiErr := decodeOptional(w, r, &req); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	issued, err := s.Keys.Rotate(r.Context(), chi.URLParam(r, "id"), req.Previous, req.Name)
	if err != nil {
		s.writeStoreError(w, r, "keys.rotate", err)
		return
	}
	s.keysChanged()
	s.logger().InfoContext(r.Context(), "api key rotated", "tenant_id", issued.TenantID, "previous", req.Previous, "name", issued.Name)
	types.WriteJSON(w, http.StatusCreated, issued)
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if s.Keys == nil {
		errKeysUnsupported().WriteJSON(w)
		return
	}
	var req keyRequest
	if apiErr := decodeOptional(w, r, &req); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if req.Name == "" {
		types.ErrBadRequest("name is required").WriteJSON(w)
		return
	}
	tenantID := chi.URLParam(r, "id")
	n, err := s.Keys.Revoke(r.Context(), tenantID, req.Name)
	if err != nil {
		s.writeStoreError(w, r, "keys.revoke", err)
		return
	}
	if n == 0 {
		types.ErrNotFound("API key not found").WriteJSON(w)
		return
	}
	s.keysChanged()
	s.logger().InfoContext(r.Context(), "api key revoked", "tenant_id", tenantID, "name", req.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if s.Configs == nil {
		types.ErrNotFound("Tenant configuration is not loaded").WriteJSON(w)
		return
	}
	n, err := s.Configs.Reload()
	if err != nil {
		types.ErrBadRequest(err.Error()).WriteJSON(w)
		return
	}
	types.WriteJSON(w, http.StatusOK, map[string]int{"reloaded": n})
}

func (s *Server) handleSyncConfigs(w http.ResponseWriter, r *http.Request) {
	if s.Provisioner == nil {
		types.ErrNotFound("Tenant configuration is not loaded").WriteJSON(w)
		return
	}
	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
	written, err := s.Provisioner.Sync(r.Context(), overwrite)
	if err != nil {
		s.logger().ErrorContext(r.Context(), "config sync failed", "error", err)
		if errors.Is(err, tenant.ErrUnavailable) {
			types.ErrDirectoryUnavailable().WriteJSON(w)
			return
		}
		types.ErrInternal().WriteJSON(w)
		return
	}
	resp := map[string]int{"written": written}
	if s.Configs != nil {
		n, err := s.Configs.Reload()
		if err != nil {
			types.ErrBadRequest(err.Error()).WriteJSON(w)
			return
		}
		resp["reloaded"] = n
	}
	types.WriteJSON(w, http.StatusOK, resp)
}
