// Package metrics provides Prometheus metrics collection for the server.
//
// Metrics are optional: when the global registry is never initialized,
// every constructor returns a no-op implementation and instrumented code
// paths carry no measurable overhead. This keeps instrumentation calls
// unconditional at the call sites.
//
// Usage:
//
//	// Initialize global registry (typically in main)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	webdavMetrics := metrics.NewWebDAVMetrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry.
	// Write-once under registryOnce, read-many afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Must be called before creating metrics instances; safe to call multiple
// times. If never called, GetRegistry returns nil and constructors hand
// out no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// collection is disabled.
//
// Thread safety: the sync.Once in InitRegistry provides the
// happens-before edge making the registry value visible to all readers.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
