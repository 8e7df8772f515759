package lock

import (
	"context"
	"path"
	"time"

	"github.com/mschuler/nwebdav/pkg/dav"
)

// scopedManager namespaces every path of an inner manager under a fixed
// prefix. Stores hand the manager mount-relative paths, so two mounts
// sharing one manager would otherwise collide on same-named paths.
type scopedManager struct {
	inner  Manager
	prefix string
}

// WithPrefix returns a view of m whose paths are rebased under prefix.
//
// Tokens pass through untouched, so token-addressed operations (Refresh,
// Unlock) work regardless of which view granted the lock. Locks returned
// by the view carry the rebased path.
//
// Closing the view is a no-op; the inner manager's lifecycle belongs to
// whoever constructed it. A prefix of "/" (or "") returns m itself.
func WithPrefix(m Manager, prefix string) Manager {
	p := CanonicalPath(prefix)
	if p == "/" {
		return m
	}
	return &scopedManager{inner: m, prefix: p}
}

// rebase maps a mount-relative path into the manager-wide namespace.
func (m *scopedManager) rebase(p string) string {
	return path.Join(m.prefix, CanonicalPath(p))
}

func (m *scopedManager) Lock(ctx context.Context, p, owner string, scope Scope, depth dav.Depth, timeout time.Duration) (*Lock, error) {
	return m.inner.Lock(ctx, m.rebase(p), owner, scope, depth, timeout)
}

func (m *scopedManager) Refresh(ctx context.Context, token string, timeout time.Duration) (*Lock, error) {
	return m.inner.Refresh(ctx, token, timeout)
}

func (m *scopedManager) Unlock(ctx context.Context, token string) error {
	return m.inner.Unlock(ctx, token)
}

func (m *scopedManager) ActiveLocks(ctx context.Context, p string) ([]Lock, error) {
	return m.inner.ActiveLocks(ctx, m.rebase(p))
}

func (m *scopedManager) IsLocked(ctx context.Context, p string, excludeTokens ...string) (bool, error) {
	return m.inner.IsLocked(ctx, m.rebase(p), excludeTokens...)
}

func (m *scopedManager) Close() error {
	return nil
}
