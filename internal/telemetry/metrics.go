// Package telemetry provides application-level observability for the dashboard gateway.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<VENTAS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router, so it is
// never subject to the route guard or rate limiting.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Upstream REST API calls made on behalf of dashboard users
//   - Login attempts by outcome and session lifecycle events
//   - Database connection pool gauge for the postgres session store (polled every 30 s)
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// The path label holds the Gin route template (e.g. /administracion/roles/:id/permisos),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Upstream metrics — one observation per call to the backend REST API.
//
// UpstreamRequestsTotal{resource, status} uses the first path segment as the
// resource label (usuarios, roles, ventas, ...) and "error" as status when the
// request never produced a response (network failure, timeout).
//
// UpstreamRetriesTotal counts requests replayed after a silent session refresh.
// A sustained non-zero rate usually means access tokens expire faster than sessions.
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of backend API requests, by resource and status code.",
		},
		[]string{"resource", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Histogram of backend API latencies, by resource.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	UpstreamRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Total number of backend requests retried after a session refresh.",
		},
	)
)

// Session metrics.
//
// LoginAttemptsTotal{outcome} outcome is "success" or the error kind name
// (invalid_credentials, account_locked, network_error, ...).
//
// SessionEventsTotal{event} event is created, refreshed or destroyed.
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of credential exchanges, by outcome.",
		},
		[]string{"outcome"},
	)

	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Total number of session lifecycle events, by event type.",
		},
		[]string{"event"},
	)

	ForcedLogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forced_logouts_total",
			Help: "Total number of sessions terminated because the upstream token could not be refreshed.",
		},
	)
)

// DBOpenConnections tracks open connections held by the postgres session store pool.
// It is sampled every 30 seconds by StartDBStatsCollector rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits when the database becomes unreachable, which happens
// automatically when the application shuts down and closes the pool.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
