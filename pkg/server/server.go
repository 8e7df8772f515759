// Package server orchestrates the lifecycle of the protocol adapters.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/adapter"
	"github.com/mschuler/nwebdav/pkg/registry"
)

// stopTimeout bounds the Stop() call issued to each adapter during
// shutdown.
const stopTimeout = 30 * time.Second

// WebdavServer manages multiple protocol adapters sharing one mount
// registry.
//
// Lifecycle:
//  1. Creation: New() with the populated registry
//  2. Registration: AddAdapter() for each protocol endpoint
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation stops all adapters gracefully
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(); Serve() must
// be called at most once.
type WebdavServer struct {
	// registry is the shared mount table injected into every adapter.
	registry *registry.Registry

	// adapters holds the registered protocol adapters.
	adapters []adapter.Adapter

	// mu protects the adapters slice.
	mu sync.Mutex

	// served flips when Serve() starts; a second call is refused.
	served atomic.Bool
}

// New creates a server around the given registry.
// Panics if the registry is nil (programmer error).
func New(reg *registry.Registry) *WebdavServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	return &WebdavServer{registry: reg}
}

// AddAdapter registers a protocol adapter and injects the shared
// registry into it.
//
// Duplicate protocols and port conflicts are refused so misconfiguration
// surfaces at startup rather than as a bind failure mid-serve.
func (s *WebdavServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}
	if s.served.Load() {
		return fmt.Errorf("cannot add adapter after Serve() has been called")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if existing.Port() == a.Port() && a.Port() != 0 {
			return fmt.Errorf("port %d already in use by %s adapter", a.Port(), existing.Protocol())
		}
	}

	a.SetRegistry(s.registry)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", a.Protocol(), a.Port())
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// On shutdown, adapters receive Stop() in reverse registration order and
// Serve waits for all of them to finish before returning. The return
// value is ctx.Err() for a signalled shutdown or the failing adapter's
// error.
func (s *WebdavServer) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return fmt.Errorf("Serve() has already been called on this server instance")
	}

	s.mu.Lock()
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	// Buffered so simultaneously failing adapters never block.
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				// context.Canceled is the expected shutdown outcome.
				if err != context.Canceled && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - stopping all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Server stopped")
	return shutdownErr
}

// adapterError pairs an adapter's protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters issues Stop() to every adapter in reverse registration
// order, continuing past individual failures.
func (s *WebdavServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil {
			logger.Warn("%s adapter stop reported: %v", a.Protocol(), err)
		}
	}
}
