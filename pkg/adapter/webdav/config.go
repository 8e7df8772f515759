package webdav

import (
	"time"
)

// Config holds configuration parameters for the WebDAV HTTP adapter.
//
// All timeout values are optional; zero falls back to the default.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - MaxConnections: 0 (unlimited)
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - IdleTimeout: 5m
//   - ShutdownTimeout: 30s
//   - DefaultLockTimeout: 60s
//   - MaxLockTimeout: 24h
//   - MetricsLogInterval: 5m (0 disables)
type Config struct {
	// Enabled controls whether the WebDAV adapter is started.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" json:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent client connections. When the
	// limit is reached new connections wait in the accept queue until a
	// slot frees up. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" json:"max_connections" validate:"min=0"`

	// ReadTimeout bounds reading a complete request, including the body.
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"min=0"`

	// IdleTimeout bounds how long a keep-alive connection may sit idle
	// between requests.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown; connections still open
	// afterwards are closed forcibly.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"min=0"`

	// DefaultLockTimeout applies to LOCK requests without a Timeout
	// header.
	DefaultLockTimeout time.Duration `mapstructure:"default_lock_timeout" json:"default_lock_timeout" validate:"min=0"`

	// MaxLockTimeout caps client-requested lock timeouts.
	MaxLockTimeout time.Duration `mapstructure:"max_lock_timeout" json:"max_lock_timeout" validate:"min=0"`

	// RateLimit is the sustained request rate per second across all
	// clients. 0 disables rate limiting.
	RateLimit uint `mapstructure:"rate_limit" json:"rate_limit"`

	// RateBurst is the burst capacity above the sustained rate.
	RateBurst uint `mapstructure:"rate_burst" json:"rate_burst"`

	// MetricsLogInterval is how often a connection summary is logged.
	// 0 disables the periodic log line.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" json:"metrics_log_interval" validate:"min=0"`
}

// applyDefaults fills zero values with production defaults.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.DefaultLockTimeout <= 0 {
		c.DefaultLockTimeout = 60 * time.Second
	}
	if c.MaxLockTimeout <= 0 {
		c.MaxLockTimeout = 24 * time.Hour
	}
}
