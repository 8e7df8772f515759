// Package memory provides the in-memory reference implementation of the
// lock.Manager contract.
//
// All lock state lives in a single table guarded by one mutex; every
// logical operation (grant, check, release) runs inside one critical
// section. Paths are kept in an ordered B-tree map so that the descendant
// scans needed for infinite-depth conflict checks are range scans rather
// than full-table walks.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
)

// Manager is the in-memory lock manager. The zero value is not usable;
// construct with New.
type Manager struct {
	// mu guards byPath and byToken. All exported methods take it exactly
	// once, for the whole logical operation.
	mu sync.Mutex

	// byPath maps canonical path to the unexpired locks held on it,
	// ordered by path so descendant ranges can be scanned in order.
	byPath *btree.Map[string, []*lock.Lock]

	// byToken maps lock token to the canonical path it is held on.
	byToken map[string]string

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates an empty in-memory lock manager.
func New() *Manager {
	return &Manager{
		byPath:  btree.NewMap[string, []*lock.Lock](0),
		byToken: make(map[string]string),
		now:     time.Now,
	}
}

// Lock implements lock.Manager.
func (m *Manager) Lock(ctx context.Context, path, owner string, scope lock.Scope, depth dav.Depth, timeout time.Duration) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := lock.CanonicalPath(path)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictLocked(p, scope, depth, now) {
		return nil, lock.ErrLocked
	}

	l := &lock.Lock{
		Path:    p,
		Owner:   owner,
		Scope:   scope,
		Depth:   depth,
		Token:   lock.NewToken(),
		Expires: now.Add(timeout),
		Timeout: timeout,
	}

	locks, _ := m.byPath.Get(p)
	m.byPath.Set(p, append(locks, l))
	m.byToken[l.Token] = p

	logger.Debug("lock granted: path=%s scope=%s depth=%s timeout=%v", p, scope, depth, timeout)

	granted := *l
	return &granted, nil
}

// Refresh implements lock.Manager.
func (m *Manager) Refresh(ctx context.Context, token string, timeout time.Duration) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findByTokenLocked(token, m.now())
	if l == nil {
		return nil, lock.ErrNoSuchLock
	}

	l.Expires = m.now().Add(timeout)
	l.Timeout = timeout

	refreshed := *l
	return &refreshed, nil
}

// Unlock implements lock.Manager.
func (m *Manager) Unlock(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findByTokenLocked(token, m.now())
	if l == nil {
		return lock.ErrNoSuchLock
	}

	m.removeLocked(l)
	logger.Debug("lock released: path=%s token=%s", l.Path, token)
	return nil
}

// ActiveLocks implements lock.Manager.
func (m *Manager) ActiveLocks(ctx context.Context, path string) ([]lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := lock.CanonicalPath(path)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []lock.Lock
	for _, l := range m.liveLocked(p, now) {
		out = append(out, *l)
	}
	for _, ancestor := range lock.Ancestors(p) {
		for _, l := range m.liveLocked(ancestor, now) {
			if l.Depth == dav.DepthInfinity {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

// IsLocked implements lock.Manager.
func (m *Manager) IsLocked(ctx context.Context, path string, excludeTokens ...string) (bool, error) {
	locks, err := m.ActiveLocks(ctx, path)
	if err != nil {
		return false, err
	}

	excluded := make(map[string]bool, len(excludeTokens))
	for _, t := range excludeTokens {
		excluded[t] = true
	}
	for i := range locks {
		if !excluded[locks[i].Token] {
			return true, nil
		}
	}
	return false, nil
}

// Close implements lock.Manager. The in-memory manager holds no external
// resources.
func (m *Manager) Close() error {
	return nil
}

// conflictLocked reports whether granting a lock with the given scope and
// depth on canonical path p would conflict with an existing unexpired lock.
// Two locks conflict when their coverage overlaps and at least one of them
// is exclusive. Caller must hold mu.
func (m *Manager) conflictLocked(p string, scope lock.Scope, depth dav.Depth, now time.Time) bool {
	exclusiveEither := func(other lock.Scope) bool {
		return scope == lock.ScopeExclusive || other == lock.ScopeExclusive
	}

	// Locks on the resource itself.
	for _, l := range m.liveLocked(p, now) {
		if exclusiveEither(l.Scope) {
			return true
		}
	}

	// Infinite-depth locks on ancestors cover this resource.
	for _, ancestor := range lock.Ancestors(p) {
		for _, l := range m.liveLocked(ancestor, now) {
			if l.Depth == dav.DepthInfinity && exclusiveEither(l.Scope) {
				return true
			}
		}
	}

	// An infinite-depth grant would cover every descendant.
	if depth == dav.DepthInfinity {
		conflict := false
		prefix := lock.ChildPrefix(p)
		m.byPath.Ascend(prefix, func(key string, locks []*lock.Lock) bool {
			if len(key) < len(prefix) || key[:len(prefix)] != prefix {
				return false
			}
			for _, l := range m.liveLocked(key, now) {
				if exclusiveEither(l.Scope) {
					conflict = true
					return false
				}
			}
			return true
		})
		if conflict {
			return true
		}
	}

	return false
}

// liveLocked returns the unexpired locks on canonical path p, purging any
// expired entries it encounters. Caller must hold mu.
func (m *Manager) liveLocked(p string, now time.Time) []*lock.Lock {
	locks, ok := m.byPath.Get(p)
	if !ok {
		return nil
	}

	live := locks[:0]
	for _, l := range locks {
		if l.Expired(now) {
			delete(m.byToken, l.Token)
			logger.Debug("lock expired: path=%s token=%s", l.Path, l.Token)
			continue
		}
		live = append(live, l)
	}

	if len(live) == 0 {
		m.byPath.Delete(p)
		return nil
	}
	m.byPath.Set(p, live)
	return live
}

// findByTokenLocked resolves a token to its unexpired lock, or nil.
// Caller must hold mu.
func (m *Manager) findByTokenLocked(token string, now time.Time) *lock.Lock {
	p, ok := m.byToken[token]
	if !ok {
		return nil
	}
	for _, l := range m.liveLocked(p, now) {
		if l.Token == token {
			return l
		}
	}
	return nil
}

// removeLocked removes one lock from both indexes. Caller must hold mu.
func (m *Manager) removeLocked(target *lock.Lock) {
	delete(m.byToken, target.Token)

	locks, ok := m.byPath.Get(target.Path)
	if !ok {
		return
	}
	remaining := locks[:0]
	for _, l := range locks {
		if l.Token != target.Token {
			remaining = append(remaining, l)
		}
	}
	if len(remaining) == 0 {
		m.byPath.Delete(target.Path)
	} else {
		m.byPath.Set(target.Path, remaining)
	}
}
