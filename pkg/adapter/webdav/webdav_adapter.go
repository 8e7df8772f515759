// Package webdav implements the WebDAV HTTP adapter.
//
// The adapter owns the HTTP listener and server lifecycle: connection
// limiting, rate limiting, metrics middleware and graceful shutdown. The
// protocol semantics live in the handlers package; the adapter only
// wires them to the network.
package webdav

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/internal/protocol/webdav/handlers"
	"github.com/mschuler/nwebdav/internal/ratelimiter"
	"github.com/mschuler/nwebdav/pkg/adapter"
	"github.com/mschuler/nwebdav/pkg/metrics"
	"github.com/mschuler/nwebdav/pkg/registry"
)

// WebDAVAdapter implements adapter.Adapter for the WebDAV protocol.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown stops accepting and drains in-flight requests
//  3. After ShutdownTimeout remaining connections are closed forcibly
//
// Thread safety:
// All methods are safe for concurrent use; shutdown is guarded by
// sync.Once and therefore idempotent.
type WebDAVAdapter struct {
	config Config

	// registry is injected by the managing server before Serve.
	registry *registry.Registry

	// metrics collects request and connection measurements; never nil.
	metrics metrics.WebDAVMetrics

	// limiter throttles the global request rate.
	limiter *ratelimiter.RateLimiter

	server *http.Server

	// connCount tracks active connections for metrics and the periodic
	// summary log line.
	connCount atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ adapter.Adapter = (*WebDAVAdapter)(nil)

// New creates a WebDAV adapter with the given configuration.
//
// A nil metrics instance falls back to the no-op implementation. The
// registry is injected later via SetRegistry.
func New(config Config, m metrics.WebDAVMetrics) *WebDAVAdapter {
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoopWebDAVMetrics()
	}

	return &WebDAVAdapter{
		config:  config,
		metrics: m,
		limiter: ratelimiter.New(config.RateLimit, config.RateBurst),
	}
}

// SetRegistry implements adapter.Adapter.
func (a *WebDAVAdapter) SetRegistry(reg *registry.Registry) {
	a.registry = reg
}

// Protocol implements adapter.Adapter.
func (a *WebDAVAdapter) Protocol() string {
	return "WebDAV"
}

// Port implements adapter.Adapter.
func (a *WebDAVAdapter) Port() int {
	return a.config.Port
}

// Serve implements adapter.Adapter.
func (a *WebDAVAdapter) Serve(ctx context.Context) error {
	if a.registry == nil {
		return fmt.Errorf("webdav adapter started without a registry")
	}

	handler := handlers.New(a.registry, a.metrics, handlers.Config{
		DefaultLockTimeout: a.config.DefaultLockTimeout,
		MaxLockTimeout:     a.config.MaxLockTimeout,
	})

	a.server = &http.Server{
		Handler:      a.rateLimit(handler),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
		ConnState:    a.trackConn,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", a.config.Port, err)
	}
	if a.config.MaxConnections > 0 {
		listener = newLimitListener(listener, a.config.MaxConnections)
	}

	logger.Info("WebDAV server listening on port %d", a.config.Port)

	if a.config.MetricsLogInterval > 0 {
		go a.logConnectionSummary(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			logger.Warn("WebDAV shutdown not graceful: %v", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return fmt.Errorf("webdav server failed: %w", err)
	}
}

// Stop implements adapter.Adapter.
func (a *WebDAVAdapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if a.server == nil {
			return
		}
		logger.Info("Stopping WebDAV server (%d active connections)", a.connCount.Load())
		if err := a.server.Shutdown(ctx); err != nil {
			// Drain timed out; cut the remaining connections.
			a.shutdownErr = err
			_ = a.server.Close()
		}
	})
	return a.shutdownErr
}

// rateLimit rejects requests above the configured global rate with 503.
func (a *WebDAVAdapter) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// trackConn maintains the connection gauge from http.Server state
// transitions.
func (a *WebDAVAdapter) trackConn(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		count := a.connCount.Add(1)
		a.metrics.RecordConnectionAccepted()
		a.metrics.SetActiveConnections(count)
	case http.StateClosed, http.StateHijacked:
		count := a.connCount.Add(-1)
		a.metrics.RecordConnectionClosed()
		a.metrics.SetActiveConnections(count)
	}
}

// logConnectionSummary periodically logs the connection count until the
// context ends.
func (a *WebDAVAdapter) logConnectionSummary(ctx context.Context) {
	ticker := time.NewTicker(a.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("WebDAV connections: %d active", a.connCount.Load())
		}
	}
}

// limitListener bounds concurrent accepted connections with a semaphore:
// Accept blocks while the limit is reached and each connection returns
// its slot on Close.
type limitListener struct {
	net.Listener
	slots chan struct{}
}

func newLimitListener(l net.Listener, limit int) net.Listener {
	return &limitListener{Listener: l, slots: make(chan struct{}, limit)}
}

func (l *limitListener) Accept() (net.Conn, error) {
	l.slots <- struct{}{}
	conn, err := l.Listener.Accept()
	if err != nil {
		<-l.slots
		return nil, err
	}
	return &limitConn{Conn: conn, release: func() { <-l.slots }}, nil
}

type limitConn struct {
	net.Conn
	releaseOnce sync.Once
	release     func()
}

func (c *limitConn) Close() error {
	err := c.Conn.Close()
	c.releaseOnce.Do(c.release)
	return err
}
