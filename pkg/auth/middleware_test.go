package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
)

type fakeDirectory struct {
	calls   int
	resolve func(key string) (*tenant.Identity, error)
}

func (f *fakeDirectory) Resolve(_ context.Context, key string) (*tenant.Identity, error) {
	f.calls++
	return f.resolve(key)
}

func (f *fakeDirectory) ListAll(context.Context) ([]tenant.Summary, error) { return nil, nil }

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

// do runs a request through ResolveTenant inside a fresh scope and returns
// the recorder and the scope.
func do(t *testing.T, dir tenant.Directory, path, key string, protected bool, next http.Handler) (*httptest.ResponseRecorder, *reqctx.Scope, string) {
	t.Helper()
	var logs bytes.Buffer
	handler := ResolveTenant(dir, testLogger(&logs))(next)

	req := httptest.NewRequest("GET", path, nil)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	ctx, scope := reqctx.Begin(req.Context(), "rid-1")
	scope.SetProtected(protected)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(ctx))
	return rr, scope, logs.String()
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body["detail"]
}

func mustNotReach(t *testing.T) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler should not be called")
	})
}

func TestResolveTenant_ValidKey(t *testing.T) {
	dir := tenant.NewStatic(tenant.DefaultFallback())
	rr, scope, _ := do(t, dir, "/v1/ping", "camila123", true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := reqctx.CurrentTenant(r.Context())
		if !ok || id.ID != "1" || id.DisplayName != "Dra. Camila" {
			t.Errorf("unexpected tenant in context: %+v", id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if scope.TenantID() != "1" {
		t.Errorf("scope tenant = %q", scope.TenantID())
	}
}

func TestResolveTenant_MissingKey(t *testing.T) {
	dir := &fakeDirectory{resolve: func(string) (*tenant.Identity, error) { return nil, nil }}
	rr, _, _ := do(t, dir, "/v1/ping", "", true, mustNotReach(t))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if d := detail(t, rr); d != "x-api-key is required" {
		t.Errorf("detail = %q", d)
	}
	if dir.calls != 0 {
		t.Error("empty key must never reach the directory")
	}
}

func TestResolveTenant_UnknownKey(t *testing.T) {
	dir := tenant.NewStatic(tenant.DefaultFallback())
	rr, scope, _ := do(t, dir, "/v1/ping", "bad-key", true, mustNotReach(t))

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
	if d := detail(t, rr); d != "Invalid API key" {
		t.Errorf("detail = %q", d)
	}
	if scope.TenantID() != "" {
		t.Error("no tenant should be stored")
	}
}

func TestResolveTenant_InactiveTenantIsInvalid(t *testing.T) {
	for _, st := range []tenant.Status{tenant.StatusInactive, tenant.StatusRevoked} {
		dir := &fakeDirectory{resolve: func(string) (*tenant.Identity, error) {
			return &tenant.Identity{ID: "9", DisplayName: "Gone", Status: st}, nil
		}}
		rr, scope, _ := do(t, dir, "/v1/ping", "k", true, mustNotReach(t))

		if rr.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", st, rr.Code)
		}
		if scope.TenantID() != "" {
			t.Errorf("%s: inactive tenant must not be stored", st)
		}
	}
}

func TestResolveTenant_UnavailableIs503(t *testing.T) {
	dir := &fakeDirectory{resolve: func(string) (*tenant.Identity, error) {
		return nil, fmt.Errorf("tenant.Postgres.Resolve: %w: %w", tenant.ErrUnavailable, errors.New("connection refused"))
	}}
	rr, _, logs := do(t, dir, "/v1/ping", "camila123", true, mustNotReach(t))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
	if d := detail(t, rr); d != "Tenant repository unavailable" {
		t.Errorf("detail = %q", d)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Error("internal error leaked to caller")
	}
	if !strings.Contains(logs, "connection refused") {
		t.Error("cause should be logged")
	}
	if strings.Contains(logs, "camila123") {
		t.Error("raw key must never be logged")
	}
}

func TestResolveTenant_SkipsPublicRequests(t *testing.T) {
	dir := &fakeDirectory{resolve: func(string) (*tenant.Identity, error) { return nil, errors.New("boom") }}
	rr, _, _ := do(t, dir, "/health", "", false, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if dir.calls != 0 {
		t.Error("public requests must not consult the directory")
	}
}
