// Package disk provides the disk-backed reference implementation of the
// store contracts.
//
// The resource tree is exactly the filesystem subtree rooted at a
// configured base directory: files are items, directories are
// collections. No side-channel metadata files are introduced — all live
// properties map onto native file attributes.
//
// Every path resolution enforces containment: a request path whose
// resolved absolute form is not equal to, or strictly nested under, the
// base directory fails immediately with a security-violation error. This
// check is the sole defense against traversal via ".." segments or
// absolute overrides, so it runs on every resolution, not only at mount
// time.
package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/lock"
	lockmemory "github.com/mschuler/nwebdav/pkg/lock/memory"
	"github.com/mschuler/nwebdav/pkg/store"
)

// Store is a disk-backed resource tree rooted at a base directory.
//
// Thread safety: the store itself holds no mutable state; concurrent
// requests race on the filesystem at the grain the operating system
// provides. Multi-step sequences (check-exists then create) are not
// transactional against a concurrent mutator; this is a known, accepted
// race, not a defect to fix silently.
type Store struct {
	// base is the absolute, cleaned base directory.
	base string

	// locks is the locking manager shared by every resource in this
	// store. It is an explicit constructed dependency, never ambient
	// global state.
	locks lock.Manager
}

// New creates a disk store rooted at baseDir.
//
// The directory must exist. A nil locks manager defaults to a fresh
// in-memory one; passing an explicit manager lets multiple stores share
// lock state or use a persistent implementation.
func New(baseDir string, locks lock.Manager) (*Store, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("base directory %s is not accessible: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory %s is not a directory", abs)
	}

	if locks == nil {
		locks = lockmemory.New()
	}

	return &Store{base: abs, locks: locks}, nil
}

// Base returns the absolute base directory of the store.
func (s *Store) Base() string {
	return s.base
}

// Locks returns the locking manager shared by this store's resources.
func (s *Store) Locks() lock.Manager {
	return s.locks
}

// resolvePath maps a request path onto the filesystem and enforces
// containment.
//
// The leading separator is stripped, remaining segments are mapped onto
// native separators and joined under the base directory (which applies
// "." and ".." segments), and the result is rejected unless it equals the
// base or is strictly nested under it. Returns the native absolute path
// and the normalized tree-absolute path.
func (s *Store) resolvePath(uri string) (fsPath, treePath string, err error) {
	rel := strings.TrimPrefix(strings.ReplaceAll(uri, "\\", "/"), "/")
	fsPath = filepath.Join(s.base, filepath.FromSlash(rel))

	sep := string(filepath.Separator)
	if fsPath != s.base && !strings.HasPrefix(fsPath, s.base+sep) {
		logger.Warn("path escapes store root: uri=%q resolved=%q base=%q", uri, fsPath, s.base)
		return "", "", &store.StoreError{
			Code:    store.ErrSecurityViolation,
			Message: "request path escapes the store root",
			Path:    uri,
		}
	}

	if fsPath == s.base {
		treePath = "/"
	} else {
		treePath = "/" + filepath.ToSlash(strings.TrimPrefix(fsPath, s.base+sep))
	}
	return fsPath, treePath, nil
}

// Resolve implements store.Store.
func (s *Store) Resolve(ctx context.Context, uri string, principal store.Principal) (store.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fsPath, treePath, err := s.resolvePath(uri)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		return nil, mapOSError("resolve", treePath, err)
	}
	if info.IsDir() {
		return s.newCollection(fsPath, treePath), nil
	}
	return s.newItem(fsPath, treePath), nil
}

// ResolveItem implements store.Store.
func (s *Store) ResolveItem(ctx context.Context, uri string, principal store.Principal) (store.Item, error) {
	r, err := s.Resolve(ctx, uri, principal)
	if err != nil {
		return nil, err
	}
	it, ok := r.(store.Item)
	if !ok {
		return nil, &store.StoreError{
			Code:    store.ErrNotFound,
			Message: "path does not name an item",
			Path:    r.Path(),
		}
	}
	return it, nil
}

// ResolveCollection implements store.Store.
func (s *Store) ResolveCollection(ctx context.Context, uri string, principal store.Principal) (store.Collection, error) {
	r, err := s.Resolve(ctx, uri, principal)
	if err != nil {
		return nil, err
	}
	c, ok := r.(store.Collection)
	if !ok {
		return nil, &store.StoreError{
			Code:    store.ErrNotFound,
			Message: "path does not name a collection",
			Path:    r.Path(),
		}
	}
	return c, nil
}

func (s *Store) newItem(fsPath, treePath string) *item {
	return &item{resource{store: s, fsPath: fsPath, tree: treePath}}
}

func (s *Store) newCollection(fsPath, treePath string) *collection {
	return &collection{resource{store: s, fsPath: fsPath, tree: treePath}}
}

// resource carries the identity shared by both variants.
type resource struct {
	store  *Store
	fsPath string // absolute native path
	tree   string // tree-absolute slash path
}

// Path implements store.Resource.
func (r *resource) Path() string {
	return r.tree
}

// Key implements store.Resource. Disk identity is the case-insensitive
// normalized absolute path, so handles resolved through differently-cased
// request paths compare and hash identically.
func (r *resource) Key() string {
	return strings.ToLower(r.fsPath)
}

// DisplayName implements store.Resource.
func (r *resource) DisplayName() string {
	return path.Base(r.tree)
}

// Locks implements store.Resource.
func (r *resource) Locks() lock.Manager {
	return r.store.locks
}

// validateChildName rejects names that are empty or contain path
// structure. Child names are single segments; anything else must go
// through full path resolution.
func validateChildName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\") {
		return &store.StoreError{
			Code:    store.ErrForbidden,
			Message: "invalid child name",
			Path:    name,
		}
	}
	return nil
}

// mapOSError translates a filesystem fault into the store taxonomy,
// logging the original cause. Out-of-space maps to insufficient-storage;
// everything unclassified maps to internal-error.
func mapOSError(op, treePath string, err error) error {
	var code store.ErrorCode
	var message string

	switch {
	case os.IsNotExist(err):
		code = store.ErrNotFound
		message = "resource not found"
	case os.IsPermission(err):
		code = store.ErrForbidden
		message = "permission denied"
	case errors.Is(err, syscall.ENOSPC):
		code = store.ErrInsufficientStorage
		message = "storage is full"
	case errors.Is(err, syscall.ENOTEMPTY), errors.Is(err, syscall.EEXIST):
		// Non-recursive collection delete hit a non-empty directory.
		code = store.ErrForbidden
		message = "collection is not empty"
	default:
		code = store.ErrInternal
		message = "storage operation failed"
	}

	if code == store.ErrNotFound {
		logger.Debug("disk %s: %s: %v", op, treePath, err)
	} else {
		logger.Error("disk %s failed for %s: %v", op, treePath, err)
	}

	return &store.StoreError{Code: code, Message: message, Path: treePath}
}
