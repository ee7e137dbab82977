// Package metrics exposes Prometheus collectors and a lightweight JSON
// stats endpoint for the upload service.
package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "pdf_upload_service"

// Upload outcome labels for UploadsTotal.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics tracks request and upload activity. The Prometheus collectors
// feed /metrics; the atomic counters feed the JSON stats endpoint without
// touching the registry.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	UploadsTotal     *prometheus.CounterVec
	UploadBytes      prometheus.Histogram

	requestCount     uint64
	errorCount       uint64
	bytesTransferred uint64
	startTime        time.Time
}

var (
	instance *Metrics
	once     sync.Once
)

// NewMetrics returns the process-wide metrics instance, creating and
// registering the collectors on first use. The namespace is fixed by the
// first caller; later calls ignore the argument.
func NewMetrics(namespace string) *Metrics {
	once.Do(func() {
		if namespace == "" {
			namespace = defaultNamespace
		}

		instance = &Metrics{
			RequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "Total HTTP requests by method, path and status code.",
				},
				[]string{"method", "path", "status"},
			),
			RequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request latency by method and path.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
			RequestsInFlight: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "http_requests_in_flight",
					Help:      "HTTP requests currently being served.",
				},
			),
			UploadsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "uploads_total",
					Help:      "Upload attempts by outcome (accepted, rejected, failed).",
				},
				[]string{"outcome"},
			),
			UploadBytes: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "upload_size_bytes",
					Help:      "Size distribution of accepted uploads.",
					Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
				},
			),
			startTime: time.Now(),
		}

		prometheus.MustRegister(
			instance.RequestsTotal,
			instance.RequestDuration,
			instance.RequestsInFlight,
			instance.UploadsTotal,
			instance.UploadBytes,
		)
	})
	return instance
}

// IncRequest records a completed HTTP request.
func (m *Metrics) IncRequest(method, path, status string) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// IncError records a server-side failure.
func (m *Metrics) IncError() {
	atomic.AddUint64(&m.errorCount, 1)
}

// AddBytesTransferred adds to the running byte counter. Both request and
// response bytes count.
func (m *Metrics) AddBytesTransferred(n uint64) {
	atomic.AddUint64(&m.bytesTransferred, n)
}

// ObserveRequestDuration records request latency.
func (m *Metrics) ObserveRequestDuration(method, path string, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// IncUpload records an upload attempt outcome.
func (m *Metrics) IncUpload(outcome string) {
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUploadSize records the size of an accepted upload.
func (m *Metrics) ObserveUploadSize(n int64) {
	m.UploadBytes.Observe(float64(n))
}

// Stats is a point-in-time summary of the atomic counters.
type Stats struct {
	TotalRequests    uint64        `json:"total_requests"`
	TotalErrors      uint64        `json:"total_errors"`
	BytesTransferred uint64        `json:"bytes_transferred"`
	RequestsPerSec   float64       `json:"requests_per_sec"`
	ErrorRate        float64       `json:"error_rate"`
	Throughput       float64       `json:"throughput_bytes_per_sec"`
	Uptime           time.Duration `json:"uptime"`
}

// GetStats computes the current stats snapshot.
func (m *Metrics) GetStats() Stats {
	requests := atomic.LoadUint64(&m.requestCount)
	errors := atomic.LoadUint64(&m.errorCount)
	bytes := atomic.LoadUint64(&m.bytesTransferred)
	elapsed := time.Since(m.startTime)

	stats := Stats{
		TotalRequests:    requests,
		TotalErrors:      errors,
		BytesTransferred: bytes,
		Uptime:           elapsed,
	}

	if seconds := elapsed.Seconds(); seconds > 0 {
		stats.RequestsPerSec = float64(requests) / seconds
		stats.Throughput = float64(bytes) / seconds
	}
	if requests > 0 {
		stats.ErrorRate = float64(errors) / float64(requests)
	}
	return stats
}

// ResetStats zeroes the atomic counters. The Prometheus collectors are
// cumulative and are not reset.
func (m *Metrics) ResetStats() {
	atomic.StoreUint64(&m.requestCount, 0)
	atomic.StoreUint64(&m.errorCount, 0)
	atomic.StoreUint64(&m.bytesTransferred, 0)
}

// Middleware instruments a handler with the request collectors.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := routeLabel(r.URL.Path)
			m.IncRequest(r.Method, path, strconv.Itoa(rw.statusCode))
			m.ObserveRequestDuration(r.Method, path, time.Since(start))

			if rw.statusCode >= http.StatusInternalServerError {
				m.IncError()
			}

			transferred := uint64(rw.bytesWritten)
			if r.ContentLength > 0 {
				transferred += uint64(r.ContentLength)
			}
			if transferred > 0 {
				m.AddBytesTransferred(transferred)
			}
		})
	}
}

// Handler serves the Prometheus exposition endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// StatsHandler serves the stats snapshot as JSON.
func (m *Metrics) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.GetStats()); err != nil {
			http.Error(w, "failed to encode stats", http.StatusInternalServerError)
		}
	})
}

// routeLabel bounds label cardinality by collapsing unknown paths.
func routeLabel(path string) string {
	switch path {
	case "/api/upload", "/api/health", "/api/config", "/metrics", "/stats":
		return path
	}
	return "other"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
