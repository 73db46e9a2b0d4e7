// Package metrics provides Prometheus instrumentation for the
// reconciliation engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DroppedMints counts outcome mints that could not be attached to a
	// position, partitioned by reason (no_market, unknown_side).
	DroppedMints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictfolio_dropped_mints_total",
		Help: "Outcome mints dropped during aggregation",
	}, []string{"reason"})

	// BalanceScanFailures counts per-token-program scan failures.
	BalanceScanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictfolio_balance_scan_failures_total",
		Help: "Token program scans that failed and were skipped",
	}, []string{"program"})

	// EventLookupFailures counts failed event metadata lookups.
	EventLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictfolio_event_lookup_failures_total",
		Help: "Event metadata lookups that failed",
	})

	// ReconcileDuration tracks end-to-end position reconciliation latency.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictfolio_reconcile_duration_seconds",
		Help:    "Position reconciliation latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "predictfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
