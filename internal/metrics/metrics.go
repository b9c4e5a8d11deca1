// Package metrics provides Prometheus instrumentation for the P&L engine.
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
	// TransactionsIngested counts transactions written, partitioned by kind.
	TransactionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptfolio_transactions_ingested_total",
		Help: "Total transactions ingested",
	}, []string{"kind"})

	// DuplicatesSkipped counts re-ingested transactions skipped as no-ops.
	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptfolio_duplicates_skipped_total",
		Help: "Transactions skipped because their key already existed",
	})

	// RecordErrors counts malformed records dropped from sync batches.
	RecordErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptfolio_record_errors_total",
		Help: "Malformed transfer records rejected during ingestion",
	})

	// SyncRejections counts syncs rejected because the key was in flight.
	SyncRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptfolio_sync_rejections_total",
		Help: "Sync requests rejected due to an in-flight sync on the same key",
	})

	// RecomputeDuration tracks holdings replay latency per method.
	RecomputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptfolio_recompute_duration_seconds",
		Help:    "Holdings recompute (full replay) duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// HoldingsSkippedNoPrice counts holdings excluded from unrealized
	// P&L because no current price was available.
	HoldingsSkippedNoPrice = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptfolio_holdings_skipped_no_price_total",
		Help: "Holdings skipped in unrealized P&L due to a missing current price",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cryptfolio_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
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
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is low.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
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
