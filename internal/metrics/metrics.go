package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts dispatched request frames
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxbridge_requests_total",
			Help: "Total number of request frames handled",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks dispatch latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxbridge_request_duration_seconds",
			Help:    "Request dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActiveSessions tracks currently registered sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxbridge_active_sessions",
			Help: "Number of registered client sessions",
		},
	)

	// SessionDuration tracks session lifetime by removal reason
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxbridge_session_duration_seconds",
			Help:    "Session lifetime in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"reason"},
	)

	// DecodeErrors counts terminal frame decode failures
	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxbridge_frame_decode_errors_total",
			Help: "Total number of frame decode errors",
		},
	)

	// PingFailures counts failed liveness probes
	PingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxbridge_ping_failures_total",
			Help: "Total number of failed liveness probes",
		},
	)

	// SessionEvictions counts evicted sessions by reason
	SessionEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxbridge_session_evictions_total",
			Help: "Total number of sessions removed",
		},
		[]string{"reason"},
	)
)

// RecordSessionStart increments the active session gauge
func RecordSessionStart() {
	ActiveSessions.Inc()
}

// RecordSessionEnd decrements the gauge and records duration and reason
func RecordSessionEnd(reason string, durationSeconds float64) {
	ActiveSessions.Dec()
	SessionDuration.WithLabelValues(reason).Observe(durationSeconds)
	SessionEvictions.WithLabelValues(reason).Inc()
}

// RecordRequest records one handled frame. mountPath is the server's
// configured endpoint; paths outside it collapse to a single label value.
func RecordRequest(method, mountPath, path, status string, durationSeconds float64) {
	path = NormalizePath(mountPath, path)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// NormalizePath collapses request paths to the configured mount path to
// avoid high label cardinality
func NormalizePath(mountPath, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == mountPath || strings.HasPrefix(path, mountPath+"/") {
		return mountPath
	}
	return "other"
}
