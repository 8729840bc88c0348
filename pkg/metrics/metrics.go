// Package metrics holds the Prometheus collectors of the gateway pipeline.
// They are served by the internal metrics listener.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gateway"

var (
	// RequestsTotal counts finished requests by method, route class and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route class and status",
		},
		[]string{"method", "class", "status"},
	)

	// RequestDuration tracks end-to-end latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"class"},
	)

	// Rejections counts pipeline short-circuits by error kind.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rejections_total",
			Help:      "Requests terminated by a pipeline stage, by error kind",
		},
		[]string{"kind"},
	)

	// Resolutions counts tenant directory outcomes.
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolutions_total",
			Help:      "Tenant directory lookups by outcome (found, not_found, unavailable)",
		},
		[]string{"outcome"},
	)

	// DirectoryLatency tracks tenant directory lookups.
	DirectoryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tenant_directory_lookup_seconds",
			Help:      "Tenant directory lookup latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RateLimitDecisions counts admission decisions.
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter admission decisions (allowed, denied)",
		},
		[]string{"decision"},
	)

	// RateLimitBuckets is the number of live token buckets.
	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_buckets",
			Help:      "Token buckets currently held in memory",
		},
	)

	// CorsDecisions counts CORS evaluations that produced a decision.
	CorsDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cors_decisions_total",
			Help:      "CORS decisions (allow, preflight, reject)",
		},
		[]string{"decision"},
	)

	// Panics counts handler panics recovered by the pipeline.
	Panics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Handler panics recovered by the pipeline",
		},
	)

	// ConfigReloads counts tenant configuration reloads by result.
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_config_reloads_total",
			Help:      "Tenant configuration reloads by result (ok, error)",
		},
		[]string{"result"},
	)
)

// RecordRequest records a finished request.
func RecordRequest(method, class string, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(method, class, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(class).Observe(d.Seconds())
}

// RecordRejection records a pipeline short-circuit.
func RecordRejection(kind string) {
	Rejections.WithLabelValues(kind).Inc()
}
