// Package config loads, defaults and validates the server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NWEBDAV_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mschuler/nwebdav/pkg/adapter/webdav"
)

// Config represents the complete server configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`

	// Server contains server-wide settings.
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Locks selects the lock manager implementation shared by all
	// mounts.
	Locks LocksConfig `mapstructure:"locks" json:"locks"`

	// Mounts defines the exported directory trees.
	Mounts []MountConfig `mapstructure:"mounts" json:"mounts" validate:"dive"`

	// Adapters contains protocol adapter configurations.
	Adapters AdaptersConfig `mapstructure:"adapters" json:"adapters"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" json:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"required,gt=0"`
}

// LocksConfig selects and configures the lock manager.
//
// The Type field determines the implementation; Options carries the
// implementation-specific settings and is decoded by the factory for
// the selected type.
type LocksConfig struct {
	// Type is the lock manager implementation.
	// Valid values: memory, badger.
	Type string `mapstructure:"type" json:"type" validate:"required,oneof=memory badger"`

	// Options holds implementation-specific settings. The badger
	// manager requires "path" (the BadgerDB directory).
	Options map[string]any `mapstructure:"options" json:"options,omitempty"`
}

// MountConfig defines one exported directory tree.
type MountConfig struct {
	// Name identifies the mount in logs and errors.
	Name string `mapstructure:"name" json:"name" validate:"required"`

	// Prefix is the URL prefix the mount is served under.
	Prefix string `mapstructure:"prefix" json:"prefix" validate:"required,startswith=/"`

	// Path is the local directory backing the mount.
	Path string `mapstructure:"path" json:"path" validate:"required"`

	// ReadOnly rejects all mutating requests on the mount.
	ReadOnly bool `mapstructure:"read_only" json:"read_only"`
}

// AdaptersConfig contains protocol adapter configurations.
type AdaptersConfig struct {
	// WebDAV configures the WebDAV HTTP adapter.
	WebDAV webdav.Config `mapstructure:"webdav" json:"webdav"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the global metrics registry and the scrape
	// endpoint.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Port is the scrape endpoint port. Default: 9090.
	Port int `mapstructure:"port" json:"port" validate:"min=0,max=65535"`
}

// Load reads the configuration from file and environment.
//
// An empty configPath falls back to the default search location
// ($XDG_CONFIG_HOME/nwebdav or ~/.config/nwebdav); a missing file there
// is not an error, defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// search path.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the NWEBDAV_ prefix and underscores,
	// e.g. NWEBDAV_LOGGING_LEVEL=DEBUG.
	v.SetEnvPrefix("NWEBDAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file; absence is acceptable
// when no explicit path was given.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if configPath == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the default configuration directory:
// $XDG_CONFIG_HOME/nwebdav, ~/.config/nwebdav, or "." as last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nwebdav")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nwebdav")
}
