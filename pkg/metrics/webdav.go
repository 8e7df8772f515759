package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebDAVMetrics provides observability for the WebDAV adapter.
//
// The interface is optional: components accept nil and substitute the
// no-op implementation, so instrumented code never branches on whether
// metrics are enabled.
type WebDAVMetrics interface {
	// RecordRequest records a completed request with its method, duration
	// and response status.
	RecordRequest(method string, duration time.Duration, status int)

	// RecordRequestStart increments the in-flight gauge for a method.
	RecordRequestStart(method string)

	// RecordRequestEnd decrements the in-flight gauge for a method.
	RecordRequestEnd(method string)

	// RecordBytesTransferred records content bytes moved, with direction
	// "read" or "write".
	RecordBytesTransferred(direction string, bytes int64)

	// RecordLockGranted increments the granted-locks counter for a scope
	// ("exclusive" or "shared").
	RecordLockGranted(scope string)

	// RecordLockDenied increments the denied-locks counter. Denials are
	// the 423 responses a conflicting lock produces.
	RecordLockDenied()

	// SetActiveConnections updates the current connection gauge.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted-connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed-connections counter.
	RecordConnectionClosed()
}

// webdavMetrics is the Prometheus implementation of WebDAVMetrics.
type webdavMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	requestsInFlight    *prometheus.GaugeVec
	bytesTransferred    *prometheus.CounterVec
	locksGranted        *prometheus.CounterVec
	locksDenied         prometheus.Counter
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewWebDAVMetrics creates a Prometheus-backed WebDAVMetrics instance, or
// a no-op one when metrics are disabled.
func NewWebDAVMetrics() WebDAVMetrics {
	if !IsEnabled() {
		return &noopWebDAVMetrics{}
	}

	reg := GetRegistry()

	return &webdavMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_requests_total",
				Help: "Total number of WebDAV requests by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nwebdav_webdav_request_duration_seconds",
				Help: "Duration of WebDAV requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"method"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nwebdav_webdav_requests_in_flight",
				Help: "Current number of WebDAV requests being processed",
			},
			[]string{"method"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_bytes_transferred_total",
				Help: "Total content bytes transferred via WebDAV operations",
			},
			[]string{"direction"}, // read or write
		),
		locksGranted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_locks_granted_total",
				Help: "Total number of locks granted by scope",
			},
			[]string{"scope"},
		),
		locksDenied: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_locks_denied_total",
				Help: "Total number of lock requests denied by a conflicting lock",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nwebdav_webdav_active_connections",
				Help: "Current number of active WebDAV connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_connections_accepted_total",
				Help: "Total number of accepted WebDAV connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nwebdav_webdav_connections_closed_total",
				Help: "Total number of closed WebDAV connections",
			},
		),
	}
}

func (m *webdavMetrics) RecordRequest(method string, duration time.Duration, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *webdavMetrics) RecordRequestStart(method string) {
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *webdavMetrics) RecordRequestEnd(method string) {
	m.requestsInFlight.WithLabelValues(method).Dec()
}

func (m *webdavMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *webdavMetrics) RecordLockGranted(scope string) {
	m.locksGranted.WithLabelValues(scope).Inc()
}

func (m *webdavMetrics) RecordLockDenied() {
	m.locksDenied.Inc()
}

func (m *webdavMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *webdavMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *webdavMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

// noopWebDAVMetrics discards all measurements.
type noopWebDAVMetrics struct{}

// NewNoopWebDAVMetrics returns a WebDAVMetrics that discards everything.
func NewNoopWebDAVMetrics() WebDAVMetrics {
	return &noopWebDAVMetrics{}
}

func (n *noopWebDAVMetrics) RecordRequest(string, time.Duration, int) {}
func (n *noopWebDAVMetrics) RecordRequestStart(string)               {}
func (n *noopWebDAVMetrics) RecordRequestEnd(string)                 {}
func (n *noopWebDAVMetrics) RecordBytesTransferred(string, int64)    {}
func (n *noopWebDAVMetrics) RecordLockGranted(string)                {}
func (n *noopWebDAVMetrics) RecordLockDenied()                       {}
func (n *noopWebDAVMetrics) SetActiveConnections(int32)              {}
func (n *noopWebDAVMetrics) RecordConnectionAccepted()               {}
func (n *noopWebDAVMetrics) RecordConnectionClosed()                 {}
