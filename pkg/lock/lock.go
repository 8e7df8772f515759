// Package lock defines the locking manager contract of the WebDAV engine.
//
// All lock state lives behind the Manager interface; no other component
// holds lock state. Two implementations exist: an in-memory reference
// implementation (lock/memory) and a BadgerDB-backed persistent one
// (lock/badger). Both are exercised by the conformance suite in
// lock/testing.
//
// A manager is an explicit, constructed dependency: it is injected into
// stores and handlers at construction time, never reached through ambient
// global state.
package lock

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mschuler/nwebdav/pkg/dav"
)

var (
	// ErrLocked is returned by Lock when an incompatible lock already
	// covers the resource or, per depth semantics, an ancestor or
	// descendant. Maps to 423 Locked.
	ErrLocked = errors.New("resource is covered by a conflicting lock")

	// ErrNoSuchLock is returned by Refresh and Unlock when the submitted
	// token does not identify an active lock (including expired locks,
	// which are treated as absent).
	ErrNoSuchLock = errors.New("no active lock with the given token")
)

// Scope is the sharing mode of a lock.
type Scope int

const (
	// ScopeExclusive excludes every other lock on the covered resources.
	ScopeExclusive Scope = iota

	// ScopeShared may coexist with other shared locks but conflicts
	// with exclusive ones.
	ScopeShared
)

// String renders the scope as it appears in lockscope XML elements.
func (s Scope) String() string {
	if s == ScopeShared {
		return "shared"
	}
	return "exclusive"
}

// Lock is one active lock as tracked by a Manager.
type Lock struct {
	// Path is the canonical path of the locked resource (see CanonicalPath).
	Path string

	// Owner is the opaque owner identity submitted at grant time.
	Owner string

	// Scope is exclusive or shared.
	Scope Scope

	// Depth is dav.DepthZero (this resource only) or dav.DepthInfinity
	// (the resource and all descendants). Depth 1 locks do not exist in
	// the protocol.
	Depth dav.Depth

	// Token is the opaque lock token, a urn:uuid URN.
	Token string

	// Expires is the wall-clock deadline after which the lock is treated
	// as absent. Expiry is evaluated lazily whenever the lock is
	// consulted; there is no active sweeper.
	Expires time.Time

	// Timeout is the duration the lock was granted or last refreshed for.
	Timeout time.Duration
}

// Expired reports whether the lock's deadline has passed.
func (l *Lock) Expired(now time.Time) bool {
	return now.After(l.Expires)
}

// Covers reports whether the lock covers the resource at canonical path p:
// either p is the locked path itself, or the lock has infinite depth and
// p is a descendant of the locked path.
func (l *Lock) Covers(p string) bool {
	if l.Path == p {
		return true
	}
	return l.Depth == dav.DepthInfinity && strings.HasPrefix(p, ChildPrefix(l.Path))
}

// Manager grants, tracks and validates resource locks.
//
// Implementations must serialize all access to their lock state; a single
// critical section per logical operation (grant, check, release) is the
// reference behavior. Callers must not hold any external lock across calls
// into a Manager, since implementations may perform I/O.
type Manager interface {
	// Lock grants a new lock on the resource at path.
	//
	// Granting fails with ErrLocked if an incompatible lock already
	// covers the resource: any lock conflicts with an exclusive one on
	// the same path, an infinite-depth lock on an ancestor covers the
	// path, and granting an infinite-depth lock conflicts with locks on
	// descendants. Two shared locks never conflict.
	Lock(ctx context.Context, path, owner string, scope Scope, depth dav.Depth, timeout time.Duration) (*Lock, error)

	// Refresh extends the deadline of the lock identified by token.
	// Returns ErrNoSuchLock for unknown or expired tokens.
	Refresh(ctx context.Context, token string, timeout time.Duration) (*Lock, error)

	// Unlock releases the lock identified by token.
	// Returns ErrNoSuchLock for unknown or expired tokens.
	Unlock(ctx context.Context, token string) error

	// ActiveLocks returns every unexpired lock covering the resource at
	// path: locks on the path itself plus infinite-depth locks on
	// ancestors. Used by the lockdiscovery property.
	ActiveLocks(ctx context.Context, path string) ([]Lock, error)

	// IsLocked reports whether the resource at path is covered by an
	// unexpired lock whose token is not in excludeTokens. Mutating
	// operations consult this with the request's submitted tokens to
	// decide whether to proceed or fail with 423.
	IsLocked(ctx context.Context, path string, excludeTokens ...string) (bool, error)

	// Close releases resources held by the manager.
	Close() error
}

// NewToken returns a fresh opaque lock token in urn:uuid form.
func NewToken() string {
	return "urn:uuid:" + uuid.NewString()
}

// CanonicalPath normalizes a resource path into the case-insensitive
// identity key locks are tracked under: cleaned, rooted at "/", lowercased.
func CanonicalPath(p string) string {
	return strings.ToLower(path.Clean("/" + strings.ReplaceAll(p, "\\", "/")))
}

// ChildPrefix returns the key prefix shared by all strict descendants of
// the canonical path p.
func ChildPrefix(p string) string {
	if p == "/" {
		return "/"
	}
	return p + "/"
}

// Ancestors returns the canonical paths of every strict ancestor of p,
// nearest first, ending with "/".
func Ancestors(p string) []string {
	var out []string
	for p != "/" {
		p = path.Dir(p)
		out = append(out, p)
	}
	return out
}
