// Package handlers implements the WebDAV HTTP verb handlers.
//
// One file per verb. Every handler follows the same shape: resolve the
// request path through the mount registry, enforce lock and read-only
// gates, call into the store or the recursive operation engine, and
// render either a plain status or a multistatus body. Handlers never
// translate storage errors themselves; they map through the store error
// taxonomy in exactly one place (writeError).
package handlers

import (
	"net/http"
	"time"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/metrics"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store"
)

// Config carries the handler-level tunables.
type Config struct {
	// DefaultLockTimeout applies when a LOCK request carries no Timeout
	// header. Default: 60s.
	DefaultLockTimeout time.Duration

	// MaxLockTimeout caps client-requested lock timeouts, including
	// "Infinite". Default: 24h.
	MaxLockTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultLockTimeout <= 0 {
		c.DefaultLockTimeout = 60 * time.Second
	}
	if c.MaxLockTimeout <= 0 {
		c.MaxLockTimeout = 24 * time.Hour
	}
}

// Handler dispatches WebDAV requests to the per-verb handlers.
type Handler struct {
	registry *registry.Registry
	metrics  metrics.WebDAVMetrics
	config   Config
}

// New creates a handler over the given mount registry.
// A nil metrics instance falls back to the no-op implementation.
func New(reg *registry.Registry, m metrics.WebDAVMetrics, config Config) *Handler {
	if m == nil {
		m = metrics.NewNoopWebDAVMetrics()
	}
	config.applyDefaults()
	return &Handler{registry: reg, metrics: m, config: config}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	start := time.Now()

	h.metrics.RecordRequestStart(method)
	defer h.metrics.RecordRequestEnd(method)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	switch method {
	case "OPTIONS":
		h.handleOptions(rec, r)
	case "GET", "HEAD":
		h.handleGet(rec, r)
	case "PUT":
		h.handlePut(rec, r)
	case "DELETE":
		h.handleDelete(rec, r)
	case "MKCOL":
		h.handleMkcol(rec, r)
	case "PROPFIND":
		h.handlePropfind(rec, r)
	case "PROPPATCH":
		h.handleProppatch(rec, r)
	case "COPY", "MOVE":
		h.handleCopyMove(rec, r)
	case "LOCK":
		h.handleLock(rec, r)
	case "UNLOCK":
		h.handleUnlock(rec, r)
	default:
		writeStatus(rec, http.StatusMethodNotAllowed)
	}

	duration := time.Since(start)
	h.metrics.RecordRequest(method, duration, rec.status)
	logger.Debug("%s %s -> %d (%v)", method, r.URL.Path, rec.status, duration)
}

// resolveMount routes the request path, answering 404 itself when no
// mount covers it.
func (h *Handler) resolveMount(w http.ResponseWriter, r *http.Request) (*registry.Mount, string, bool) {
	mount, rel, err := h.registry.Resolve(r.URL.Path)
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return nil, "", false
	}
	return mount, rel, true
}

// requireWritable rejects mutating verbs on read-only mounts.
func requireWritable(w http.ResponseWriter, mount *registry.Mount) bool {
	if mount.ReadOnly {
		writeStatus(w, http.StatusForbidden)
		return false
	}
	return true
}

// principal returns the caller identity for the request.
//
// Credentials are not validated; the Basic username, when present, is
// taken at face value so stores can use it for policy and locks can
// record an owner. Everything else runs as the anonymous principal.
func principal(r *http.Request) store.Principal {
	if user, _, ok := r.BasicAuth(); ok && user != "" {
		return store.Principal(user)
	}
	return store.Anonymous
}

// statusRecorder captures the response status for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if !rec.written {
		rec.status = status
		rec.written = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.written = true
	return rec.ResponseWriter.Write(b)
}
