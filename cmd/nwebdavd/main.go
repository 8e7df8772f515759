package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mschuler/nwebdav/internal/logger"
	webdavAdapter "github.com/mschuler/nwebdav/pkg/adapter/webdav"
	"github.com/mschuler/nwebdav/pkg/config"
	"github.com/mschuler/nwebdav/pkg/metrics"
	"github.com/mschuler/nwebdav/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/nwebdav/config.yaml)")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flag wins over config file and environment.
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("nwebdav - WebDAV Server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webdavMetrics, metricsServer := initializeMetrics(cfg)

	locks, err := config.BuildLockManager(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create lock manager: %v", err)
	}
	defer func() {
		if err := locks.Close(); err != nil {
			logger.Warn("Lock manager close reported: %v", err)
		}
	}()

	reg, err := config.BuildRegistry(cfg, locks)
	if err != nil {
		log.Fatalf("Failed to build mount registry: %v", err)
	}

	srv := server.New(reg)
	if cfg.Adapters.WebDAV.Enabled {
		if err := srv.AddAdapter(webdavAdapter.New(cfg.Adapters.WebDAV, webdavMetrics)); err != nil {
			log.Fatalf("Failed to register WebDAV adapter: %v", err)
		}
	}

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Serve(ctx); err != nil && err != context.Canceled {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil && err != context.Canceled {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		cancel()
		if err != nil && err != context.Canceled {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

// initializeMetrics sets up the Prometheus registry and scrape endpoint
// when metrics are enabled; otherwise everything collapses to no-ops.
func initializeMetrics(cfg *config.Config) (metrics.WebDAVMetrics, *metrics.Server) {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoopWebDAVMetrics(), nil
	}

	metrics.InitRegistry()
	logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	return metrics.NewWebDAVMetrics(), metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
}
