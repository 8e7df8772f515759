// Package e2e exercises the full server stack over the wire: a real
// TCP listener, the HTTP adapter and a production WebDAV client library
// on the other end.
package e2e

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/mschuler/nwebdav/internal/logger"
	webdavAdapter "github.com/mschuler/nwebdav/pkg/adapter/webdav"
	lockmemory "github.com/mschuler/nwebdav/pkg/lock/memory"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/server"
	"github.com/mschuler/nwebdav/pkg/store/disk"
)

// TestContext provides a complete testing environment: a running
// server backed by a temporary directory and a connected WebDAV client.
type TestContext struct {
	T        *testing.T
	Server   *server.WebdavServer
	Registry *registry.Registry
	Client   *gowebdav.Client
	DataDir  string
	Port     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTestContext boots a server on a free port with a single writable
// mount at "/" and connects a client to it.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:       t,
		DataDir: t.TempDir(),
		Port:    findFreePort(t),
		ctx:     ctx,
		cancel:  cancel,
	}

	tc.startServer()
	tc.waitForServer()
	tc.connectClient()

	return tc
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	st, err := disk.New(tc.DataDir, lockmemory.New())
	if err != nil {
		tc.T.Fatalf("Failed to create disk store: %v", err)
	}

	tc.Registry = registry.New()
	if err := tc.Registry.AddMount(&registry.Mount{
		Name:   "e2e",
		Prefix: "/",
		Store:  st,
	}); err != nil {
		tc.T.Fatalf("Failed to add mount: %v", err)
	}

	adapterConfig := webdavAdapter.Config{
		Enabled:         true,
		Port:            tc.Port,
		ShutdownTimeout: 5 * time.Second,
	}

	tc.Server = server.New(tc.Registry)
	if err := tc.Server.AddAdapter(webdavAdapter.New(adapterConfig, nil)); err != nil {
		tc.T.Fatalf("Failed to add WebDAV adapter: %v", err)
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(tc.ctx); err != nil && err != context.Canceled {
			tc.T.Logf("Server error: %v", err)
		}
	}()
}

// waitForServer polls until the listener accepts connections.
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", tc.Port), time.Second)
			if err == nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (tc *TestContext) connectClient() {
	tc.T.Helper()

	tc.Client = gowebdav.NewClient(fmt.Sprintf("http://localhost:%d", tc.Port), "", "")
	if err := tc.Client.Connect(); err != nil {
		tc.T.Fatalf("Failed to connect WebDAV client: %v", err)
	}
}

// Cleanup stops the server and waits for it to exit.
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	tc.cancel()
	tc.wg.Wait()
}

// findFreePort finds an available TCP port
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
