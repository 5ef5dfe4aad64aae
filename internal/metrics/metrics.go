// Package metrics provides Prometheus metrics for lazytree.
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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazytree_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazytree_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	materializeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazytree_materialize_duration_seconds",
			Help:    "Time to enumerate a subtree",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	lazyBoundaryNodes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazytree_lazy_nodes_total",
			Help: "Directories created with deferred children",
		},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazytree_extractions_total",
			Help: "Archive extractions by result",
		},
		[]string{"result"},
	)

	extractionBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lazytree_extraction_bytes_total",
			Help: "Archive bytes read by successful extractions",
		},
	)

	busyOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazytree_busy_operations",
			Help: "Operations currently running",
		},
	)

	runningExtractions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazytree_running_extractions",
			Help: "Extractions currently running",
		},
	)

	treeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lazytree_tree_nodes",
			Help: "Nodes currently in the tree",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMaterialize records one builder run. trigger is "add", "expand",
// "extract" or "refresh".
func RecordMaterialize(trigger string, duration time.Duration, lazy int) {
	materializeDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	lazyBoundaryNodes.Add(float64(lazy))
}

// RecordExtraction records the outcome of an extraction request.
func RecordExtraction(result string, bytes int64) {
	extractionsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		extractionBytes.Add(float64(bytes))
	}
}

// SetBusy sets the number of running operations and extractions.
func SetBusy(busy, extracting int) {
	busyOperations.Set(float64(busy))
	runningExtractions.Set(float64(extracting))
}

// SetTreeNodes sets the current node count.
func SetTreeNodes(n int) {
	treeNodes.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
