package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasEdu07/friday-agents/pkg/cors"
	"github.com/LucasEdu07/friday-agents/pkg/metrics"
	"github.com/LucasEdu07/friday-agents/pkg/ratelimit"
	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
)

type settings struct {
	rules   map[string]ratelimit.Rules
	origins map[string][]string
}

func (s settings) RateLimitRules(id string) ratelimit.Rules { return s.rules[id] }
func (s settings) CorsPolicy(id string) cors.Policy {
	return cors.Policy{AllowedOrigins: s.origins[id]}
}

type dirFunc func(ctx context.Context, key string) (*tenant.Identity, error)

func (f dirFunc) Resolve(ctx context.Context, key string) (*tenant.Identity, error) {
	return f(ctx, key)
}
func (f dirFunc) ListAll(context.Context) ([]tenant.Summary, error) { return nil, nil }

func ptr(v int) *int { return &v }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

var testTenants = []tenant.StaticEntry{
	{Key: "camila123", ID: "1", Name: "Dra. Camila"},
	{Key: "zeoficina456", ID: "2", Name: "Oficina do Zé"},
	{Key: "key-t", ID: "T", Name: "Tenant T"},
}

type harness struct {
	handler http.Handler
	logs    *bytes.Buffer
}

func newHarness(t *testing.T, dir tenant.Directory, s settings) *harness {
	t.Helper()
	logs := &bytes.Buffer{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := chi.NewRouter()
	New(Options{
		Directory: dir,
		Settings:  s,
		Limiter:   ratelimit.New(ratelimit.WithClock(clock.Now)),
		Logger:    slog.New(slog.NewJSONHandler(logs, nil)),
		Timeout:   time.Second,
	}).Use(r)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		id, ok := reqctx.CurrentTenant(r.Context())
		if !ok {
			http.Error(w, "no tenant", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Pong from " + id.DisplayName, "tenant_id": id.ID})
	})
	r.Get("/v1/other", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/v1/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	return &harness{handler: r, logs: logs}
}

func (h *harness) do(method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func staticHarness(t *testing.T, s settings) *harness {
	return newHarness(t, tenant.NewStatic(testTenants), s)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestPipeline_EndToEndPing(t *testing.T) {
	h := staticHarness(t, settings{})
	rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Dra. Camila")
	assert.Equal(t, "1", rr.Header().Get(HeaderTenantID))
	assert.NoError(t, uuid.Validate(rr.Header().Get(HeaderRequestID)))
}

func TestPipeline_MissingKey(t *testing.T) {
	h := staticHarness(t, settings{})
	rr := h.do(http.MethodGet, "/v1/ping", nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "x-api-key is required", decode(t, rr)["detail"])
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))
	assert.Empty(t, rr.Header().Get(HeaderTenantID))
}

func TestPipeline_RejectionsAreCounted(t *testing.T) {
	h := staticHarness(t, settings{})
	missing := metrics.Rejections.WithLabelValues("credential_missing")
	panics := metrics.Panics
	before, beforePanics := testutil.ToFloat64(missing), testutil.ToFloat64(panics)

	h.do(http.MethodGet, "/v1/ping", nil)
	h.do(http.MethodGet, "/v1/boom", map[string]string{"x-api-key": "camila123"})

	assert.Equal(t, before+1, testutil.ToFloat64(missing))
	assert.Equal(t, beforePanics+1, testutil.ToFloat64(panics))
}

func TestPipeline_InvalidKey(t *testing.T) {
	h := staticHarness(t, settings{})
	rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "nope"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Invalid API key", decode(t, rr)["detail"])
	assert.Empty(t, rr.Header().Get(HeaderTenantID))
}

func TestPipeline_RequestIDEchoedOnSuccessAndError(t *testing.T) {
	h := staticHarness(t, settings{})
	id := uuid.NewString()

	ok := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123", "X-Request-Id": id})
	denied := h.do(http.MethodGet, "/v1/ping", map[string]string{"X-Request-Id": id})

	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, id, ok.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusUnauthorized, denied.Code)
	assert.Equal(t, id, denied.Header().Get(HeaderRequestID))
}

func TestPipeline_NonUUIDRequestIDReplaced(t *testing.T) {
	h := staticHarness(t, settings{})
	for _, in := range []string{"abc", "not-a-uuid-at-all", "{" + uuid.NewString() + "}"} {
		rr := h.do(http.MethodGet, "/health", map[string]string{"X-Request-Id": in})
		got := rr.Header().Get(HeaderRequestID)
		assert.NotEqual(t, in, got)
		assert.NoError(t, uuid.Validate(got), in)
	}
}

func TestPipeline_PublicPathsSkipDirectory(t *testing.T) {
	calls := 0
	dir := dirFunc(func(context.Context, string) (*tenant.Identity, error) {
		calls++
		return nil, nil
	})
	h := newHarness(t, dir, settings{})

	rr := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))
	assert.Zero(t, calls)
}

func TestPipeline_ThirdRequestThrottled(t *testing.T) {
	h := staticHarness(t, settings{rules: map[string]ratelimit.Rules{
		"T": {Routes: map[string]ratelimit.Spec{"/v1/ping": {RPM: ptr(2), Burst: ptr(2)}}},
	}})
	hdr := map[string]string{"x-api-key": "key-t"}

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/ping", hdr).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/ping", hdr).Code)
	rr := h.do(http.MethodGet, "/v1/ping", hdr)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"detail":"Too Many Requests","tenant":"T"}`, rr.Body.String())
	assert.Equal(t, "T", rr.Header().Get(HeaderTenantID))
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestPipeline_RateLimitIsolation(t *testing.T) {
	one := ratelimit.Rules{Default: ratelimit.Spec{RPM: ptr(1), Burst: ptr(1)}}
	h := staticHarness(t, settings{rules: map[string]ratelimit.Rules{"1": one, "2": one}})
	a := map[string]string{"x-api-key": "camila123"}
	b := map[string]string{"x-api-key": "zeoficina456"}

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/ping", a).Code)
	require.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/v1/ping", a).Code)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/ping", b).Code, "other tenant, same route")
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/other", a).Code, "same tenant, other route")
}

func TestPipeline_DirectoryUnavailableIs503(t *testing.T) {
	dir := dirFunc(func(context.Context, string) (*tenant.Identity, error) {
		return nil, fmt.Errorf("lookup: %w", tenant.ErrUnavailable)
	})
	h := newHarness(t, dir, settings{})

	for _, key := range []string{"camila123", "anything"} {
		rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": key})
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "Tenant repository unavailable", decode(t, rr)["detail"])
	}
}

func TestPipeline_InactiveTenantIs403(t *testing.T) {
	dir := dirFunc(func(context.Context, string) (*tenant.Identity, error) {
		return &tenant.Identity{ID: "9", DisplayName: "Old", Status: tenant.StatusInactive}, nil
	})
	h := newHarness(t, dir, settings{})

	rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "k"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get(HeaderTenantID))
}

func TestPipeline_CORS(t *testing.T) {
	h := staticHarness(t, settings{origins: map[string][]string{"1": {"https://x"}}})

	ok := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123", "Origin": "https://x"})
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "https://x", ok.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", ok.Header().Get("Vary"))

	evil := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123", "Origin": "https://evil"})
	assert.Equal(t, http.StatusForbidden, evil.Code)
	assert.Equal(t, "CORS origin não permitida", decode(t, evil)["detail"])
	assert.Equal(t, "1", evil.Header().Get(HeaderTenantID))

	bare := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123"})
	assert.Equal(t, http.StatusOK, bare.Code)
	assert.Empty(t, bare.Header().Get("Access-Control-Allow-Origin"))
}

func TestPipeline_StageOrdering(t *testing.T) {
	one := ratelimit.Rules{Default: ratelimit.Spec{RPM: ptr(1), Burst: ptr(1)}}
	h := staticHarness(t, settings{
		rules:   map[string]ratelimit.Rules{"1": one},
		origins: map[string][]string{"1": {"https://x"}},
	})

	// Rejected before the limiter: no token spent.
	for range 3 {
		require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/ping", nil).Code)
	}
	// The limiter runs before CORS, so a rejected origin still spends the token.
	evil := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123", "Origin": "https://evil"})
	require.Equal(t, http.StatusForbidden, evil.Code)

	rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123", "Origin": "https://x"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestPipeline_PanicBecomes500(t *testing.T) {
	h := staticHarness(t, settings{})
	id := uuid.NewString()

	rr := h.do(http.MethodGet, "/v1/boom", map[string]string{"x-api-key": "camila123", "X-Request-Id": id})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error", decode(t, rr)["detail"])
	assert.NotContains(t, rr.Body.String(), "kaboom")
	assert.Equal(t, id, rr.Header().Get(HeaderRequestID))
	assert.Equal(t, "1", rr.Header().Get(HeaderTenantID))
	assert.Contains(t, h.logs.String(), `"msg":"request.error"`)
	assert.Contains(t, h.logs.String(), `"tenant_id":"1"`)
}

func TestPipeline_AccessLog(t *testing.T) {
	h := staticHarness(t, settings{})
	h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": "camila123"})

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(h.logs.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		if m["msg"] == "request.end" {
			entry = m
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, "1", entry["tenant_id"])
	assert.Equal(t, "/v1/ping", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.NotContains(t, h.logs.String(), "camila123")
}

func TestPipeline_CancelledLookupEndsScope(t *testing.T) {
	var seen *reqctx.Scope
	dir := dirFunc(func(ctx context.Context, _ string) (*tenant.Identity, error) {
		seen = reqctx.FromContext(ctx)
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", tenant.ErrUnavailable, ctx.Err())
	})

	logs := &bytes.Buffer{}
	r := chi.NewRouter()
	New(Options{
		Directory: dir,
		Settings:  settings{},
		Logger:    slog.New(slog.NewJSONHandler(logs, nil)),
		Timeout:   20 * time.Millisecond,
	}).Use(r)
	r.Get("/v1/ping", func(http.ResponseWriter, *http.Request) { t.Error("handler reached") })

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("x-api-key", "camila123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NotNil(t, seen)
	_, ok := seen.Tenant()
	assert.False(t, ok)
	seen.SetTenant(tenant.Identity{ID: "late", Status: tenant.StatusActive})
	assert.Empty(t, seen.TenantID(), "scope must be closed after the request")
}

func TestPipeline_ConcurrentTenantsDoNotLeak(t *testing.T) {
	h := staticHarness(t, settings{})
	want := map[string]string{"camila123": "1", "zeoficina456": "2", "key-t": "T"}

	var wg sync.WaitGroup
	errs := make(chan string, 300)
	for i := range 300 {
		key := testTenants[i%len(testTenants)].Key
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := h.do(http.MethodGet, "/v1/ping", map[string]string{"x-api-key": key})
			if rr.Code == http.StatusTooManyRequests {
				return
			}
			var body map[string]string
			_ = json.Unmarshal(rr.Body.Bytes(), &body)
			if body["tenant_id"] != want[key] || rr.Header().Get(HeaderTenantID) != want[key] {
				errs <- fmt.Sprintf("key %s got %q / %q", key, body["tenant_id"], rr.Header().Get(HeaderTenantID))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
