package config

import (
	"strings"
	"time"
)

// Default values applied to unset configuration fields.
const (
	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "INFO"

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultLockManager is the lock manager used when none is
	// configured.
	DefaultLockManager = "memory"

	// DefaultMetricsPort is the Prometheus scrape endpoint port.
	DefaultMetricsPort = 9090

	// DefaultMountPath backs the default mount when no mounts are
	// configured.
	DefaultMountPath = "./data"
)

// ApplyDefaults fills unset configuration fields with sensible defaults.
//
// Called after unmarshalling and before validation, so a minimal (or
// absent) config file still yields a runnable configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Locks.Type == "" {
		cfg.Locks.Type = DefaultLockManager
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}

	// A config without mounts gets a single default export so a fresh
	// install serves something out of the box.
	if len(cfg.Mounts) == 0 {
		cfg.Mounts = []MountConfig{
			{
				Name:   "default",
				Prefix: "/",
				Path:   DefaultMountPath,
			},
		}
	}

	applyAdapterDefaults(&cfg.Adapters)
}

// applyAdapterDefaults sets adapter defaults.
func applyAdapterDefaults(cfg *AdaptersConfig) {
	// Enable the WebDAV adapter when it looks unconfigured (Port is 0,
	// meaning the adapters section was absent). An explicit
	// enabled: false with a port set is honored.
	if !cfg.WebDAV.Enabled && cfg.WebDAV.Port == 0 {
		cfg.WebDAV.Enabled = true
	}
	if cfg.WebDAV.Port == 0 {
		cfg.WebDAV.Port = 8080
	}
}

// GetDefaultConfig returns a fully populated configuration using only
// default values.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
