// Package registry maps URL prefixes to stores.
//
// A Registry holds the server's mount table: each mount binds a URL
// prefix (e.g. "/docs") to a Store. Request routing picks the mount with
// the longest matching prefix and hands the store the path remainder, so
// stores never see mount prefixes and mounts never see each other.
//
// The registry is populated at startup from configuration and is
// effectively read-only afterwards; the lock exists for the rare dynamic
// reconfiguration path, not for the request hot path.
package registry

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/store"
)

// Mount binds a URL prefix to a store.
type Mount struct {
	// Name is the human-readable mount name used in logs and errors.
	Name string

	// Prefix is the normalized URL prefix, "/" for the root mount or a
	// cleaned rooted path without trailing slash (e.g. "/docs").
	Prefix string

	// Store serves every path under Prefix.
	Store store.Store

	// ReadOnly rejects all mutating operations on this mount.
	ReadOnly bool
}

// Registry is the server's mount table.
type Registry struct {
	mu     sync.RWMutex
	mounts []*Mount
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// NormalizePrefix brings a configured prefix into canonical form: rooted,
// cleaned, no trailing slash (except the root itself).
func NormalizePrefix(prefix string) string {
	return path.Clean("/" + strings.Trim(prefix, "/"))
}

// AddMount registers a mount.
//
// Fails if the name or normalized prefix collides with an existing mount.
// Nested prefixes (e.g. "/" and "/docs") are legal; routing resolves them
// by longest match.
func (r *Registry) AddMount(m *Mount) error {
	if m == nil || m.Store == nil {
		return fmt.Errorf("mount and its store must not be nil")
	}
	if m.Name == "" {
		return fmt.Errorf("mount name must not be empty")
	}

	prefix := NormalizePrefix(m.Prefix)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.mounts {
		if existing.Name == m.Name {
			return fmt.Errorf("mount %q already registered", m.Name)
		}
		if existing.Prefix == prefix {
			return fmt.Errorf("prefix %q already served by mount %q", prefix, existing.Name)
		}
	}

	r.mounts = append(r.mounts, &Mount{
		Name:     m.Name,
		Prefix:   prefix,
		Store:    m.Store,
		ReadOnly: m.ReadOnly,
	})

	logger.Info("Registered mount %q at %s (read-only: %v)", m.Name, prefix, m.ReadOnly)
	return nil
}

// Resolve routes a request path to a mount.
//
// Picks the mount with the longest prefix matching on whole segments and
// returns it with the mount-relative remainder ("/" for the mount root).
// Fails when no mount covers the path.
func (r *Registry) Resolve(urlPath string) (*Mount, string, error) {
	p := path.Clean("/" + strings.ReplaceAll(urlPath, "\\", "/"))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Mount
	for _, m := range r.mounts {
		if !covers(m.Prefix, p) {
			continue
		}
		if best == nil || len(m.Prefix) > len(best.Prefix) {
			best = m
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("no mount serves path %q", p)
	}

	rel := strings.TrimPrefix(p, best.Prefix)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return best, rel, nil
}

// Mounts returns a snapshot of the registered mounts.
func (r *Registry) Mounts() []*Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Mount, len(r.mounts))
	copy(out, r.mounts)
	return out
}

// covers reports whether prefix matches p on whole path segments.
func covers(prefix, p string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
