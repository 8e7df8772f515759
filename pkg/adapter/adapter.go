package adapter

import (
	"context"

	"github.com/mschuler/nwebdav/pkg/registry"
)

// Adapter represents a protocol-specific server adapter managed by the
// engine server.
//
// Each adapter exposes the shared mount registry over one protocol
// endpoint (the WebDAV HTTP adapter, the metrics scrape endpoint) behind
// a unified lifecycle interface.
//
// Lifecycle:
//  1. Creation: adapter is created with protocol-specific configuration
//  2. Registry injection: SetRegistry() provides the shared mount table
//  3. Startup: Serve() starts the endpoint and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetRegistry() is
// called once before Serve(), but Stop() may be called concurrently with
// Serve().
type Adapter interface {
	// Serve starts the endpoint and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful
	// shutdown: stop accepting new connections, wait for in-flight
	// requests within a timeout, clean up, and return context.Canceled
	// or nil. A return before cancellation is treated as fatal by the
	// managing server, which then stops all other adapters.
	Serve(ctx context.Context) error

	// SetRegistry injects the shared mount registry.
	//
	// Called exactly once before Serve(); no synchronization needed.
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown.
	//
	// May be called concurrently with Serve() and must be idempotent.
	// The context bounds the shutdown; on expiry remaining connections
	// are closed forcibly.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and
	// metrics, constant for the adapter's lifetime.
	Protocol() string

	// Port returns the TCP port the adapter listens on, for logging and
	// conflict detection. Zero before startup when dynamically
	// allocated.
	Port() int
}
