// Gateway serves the tenant-scoped text and vision API. Every request runs
// the pipeline (request id, tenant resolution, rate limiting, CORS) before
// reaching a handler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/LucasEdu07/friday-agents/pkg/api"
	"github.com/LucasEdu07/friday-agents/pkg/config"
	"github.com/LucasEdu07/friday-agents/pkg/keys"
	gwOtel "github.com/LucasEdu07/friday-agents/pkg/otel"
	"github.com/LucasEdu07/friday-agents/pkg/pipeline"
	"github.com/LucasEdu07/friday-agents/pkg/ratelimit"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/tenantcfg"
)

const (
	serviceName = "friday-agents-gateway"
	version     = "0.1.0"
)

// settings is the process configuration, read once from the environment.
type settings struct {
	Addr            string
	MetricsAddr     string
	DatabaseURL     string
	StaticTenants   string
	TenantConfigDir string
	WatchConfig     bool
	SyncOnStart     bool
	CacheTTL        time.Duration
	SweepInterval   time.Duration
	RequestTimeout  time.Duration
	Iterations      int
	Migrate         bool
	AdminEnabled    bool
}

func loadSettings() settings {
	return settings{
		Addr:            config.EnvOr("GATEWAY_ADDR", ":8081"),
		MetricsAddr:     config.EnvOr("METRICS_ADDR", "127.0.0.1:9090"),
		DatabaseURL:     databaseURL(),
		StaticTenants:   os.Getenv("STATIC_TENANTS"),
		TenantConfigDir: config.EnvOr("TENANT_CONFIG_DIR", "./tenants"),
		WatchConfig:     config.EnvOrBool("TENANT_CONFIG_WATCH", false),
		SyncOnStart:     config.EnvOrBool("TENANT_CONFIG_SYNC_ON_START", false),
		CacheTTL:        config.EnvOrDuration("DIRECTORY_CACHE_TTL", 30*time.Second),
		SweepInterval:   config.EnvOrDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
		RequestTimeout:  config.EnvOrDuration("REQUEST_TIMEOUT", pipeline.DefaultTimeout),
		Iterations:      config.EnvOrInt("API_KEY_ITERATIONS", keys.DefaultIterations),
		Migrate:         config.EnvOrBool("DB_MIGRATE", true),
		AdminEnabled:    config.IsDevEnv() || config.EnvOrBool("ADMIN_ROUTES_ENABLED", false),
	}
}

// databaseURL prefers DATABASE_URL and falls back to the POSTGRES_* parts
// when POSTGRES_HOST is set. Neither means the static tenant table.
func databaseURL() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	if os.Getenv("POSTGRES_HOST") != "" {
		return buildPostgresDSN()
	}
	return ""
}

func buildPostgresDSN() string {
	sslmode := config.EnvOr("POSTGRES_SSLMODE", "disable")
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.EnvOr("POSTGRES_USER", "gateway"), config.EnvOr("POSTGRES_PASSWORD", "changeme")),
		Host:     net.JoinHostPort(config.EnvOr("POSTGRES_HOST", "localhost"), config.EnvOr("POSTGRES_PORT", "5432")),
		Path:     config.EnvOr("POSTGRES_DB", "gateway"),
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, loadSettings(), log); err != nil {
		log.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s settings, log *slog.Logger) error {
	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelShutdown, err := gwOtel.Setup(ctx, gwOtel.Config{
		ServiceName:    config.EnvOr("OTEL_SERVICE_NAME", serviceName),
		ServiceVersion: version,
		TraceExporter:  os.Getenv("OTEL_TRACES_EXPORTER"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsEnabled: true,
	})
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	gw, err := newGateway(ctx, s, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	if s.WatchConfig {
		if err := gw.configs.Watch(ctx); err != nil {
			log.Warn("tenant config watch disabled", "error", err)
		}
	}
	go gw.limiter.SweepEvery(ctx, s.SweepInterval, log)

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              s.MetricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", s.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           otelhttp.NewHandler(gw.handler, "gateway"),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("gateway starting", "addr", s.Addr, "directory", gw.backend.Kind, "admin_routes", s.AdminEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("gateway: listen: %w", err)
	}

	log.Info("shutting down gateway")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
	return nil
}

// gateway is the assembled service without its listeners.
type gateway struct {
	handler http.Handler
	backend *tenant.Backend
	configs *tenantcfg.Store
	limiter *ratelimit.Limiter
}

func (g *gateway) Close() { g.backend.Close() }

func newGateway(ctx context.Context, s settings, log *slog.Logger) (*gateway, error) {
	backend, err := tenant.OpenBackend(ctx, tenant.BackendConfig{
		DatabaseURL:   s.DatabaseURL,
		StaticTenants: s.StaticTenants,
		CacheTTL:      s.CacheTTL,
		Iterations:    s.Iterations,
		Migrate:       s.Migrate,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: open tenant directory: %w", err)
	}

	loader := &tenantcfg.Loader{Dir: s.TenantConfigDir}
	configs := tenantcfg.NewStore(loader, log)
	provisioner := &tenantcfg.Provisioner{Loader: loader, Source: backend.Directory}

	if s.SyncOnStart {
		n, err := provisioner.Sync(ctx, false)
		if err != nil {
			log.Warn("tenant config sync failed", "error", err)
		} else {
			log.Info("tenant configs provisioned", "written", n)
		}
	}
	if _, err := configs.Reload(); err != nil {
		backend.Close()
		return nil, fmt.Errorf("gateway: load tenant config: %w", err)
	}

	checks := map[string]api.Check{}
	if p, ok := backend.Directory.(tenant.Pinger); ok {
		checks["directory"] = p.Ping
	}

	limiter := ratelimit.New()
	r := chi.NewRouter()
	pipeline.New(pipeline.Options{
		Directory: backend.Directory,
		Settings:  configs,
		Limiter:   limiter,
		Timeout:   s.RequestTimeout,
		Logger:    log,
	}).Use(r)

	srv := &api.Server{
		Service:       serviceName,
		Version:       version,
		Configs:       configs,
		Directory:     backend.Directory,
		Keys:          backend.Keys,
		Provisioner:   provisioner,
		Checks:        checks,
		AdminEnabled:  s.AdminEnabled,
		OnKeysChanged: backend.Flush,
		Log:           log,
	}
	srv.Routes(r)

	return &gateway{handler: r, backend: backend, configs: configs, limiter: limiter}, nil
}
