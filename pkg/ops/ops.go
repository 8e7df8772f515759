// Package ops implements the recursive copy, move and delete engine.
//
// The engine composes the primitive per-resource operations of the store
// contracts into whole-subtree semantics: pre-order traversal for copy
// and move (a container must exist before its children), post-order for
// delete (children must be gone before their container). Failures below
// the operation root never abort the whole walk; they are recorded in an
// ErrorCollection so the protocol layer can render a multistatus body,
// and the failed subtree is simply not descended into further.
//
// Lock enforcement happens here, once per touched path, against the lock
// manager of the resource's own store. A covered path whose lock token
// was not submitted with the request fails that path with 423 and is
// otherwise treated like any other per-resource failure.
package ops

import (
	"context"
	"path"

	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/store"
)

// Options carries the request-scoped parameters of a recursive operation.
type Options struct {
	// Overwrite permits replacing an existing destination.
	Overwrite bool

	// Depth limits how deep a copy descends: DepthZero copies a
	// collection without children, DepthInfinity the whole subtree.
	// Move and delete are always whole-subtree.
	Depth dav.Depth

	// Principal is the caller identity threaded into every store call.
	Principal store.Principal

	// Tokens are the lock tokens submitted with the request. A lock
	// whose token appears here does not block the operation.
	Tokens []string

	// SrcPrefix and DstPrefix are the URL prefixes restored onto
	// source-side and destination-side paths when failures are
	// recorded, so a cross-mount operation reports every href under
	// the mount it actually belongs to. Empty leaves paths
	// tree-relative.
	SrcPrefix string
	DstPrefix string
}

// record adds a failure under the given URL prefix.
func record(errs *ErrorCollection, prefix, p string, st dav.Status) {
	errs.Add(path.Join(prefix, p), st)
}

// locked reports whether the path is covered by a lock not excused by the
// submitted tokens. A lock-manager fault is treated as locked: failing
// closed beats mutating a resource whose lock state is unknown.
func locked(ctx context.Context, r store.Resource, p string, opts Options) bool {
	isLocked, err := r.Locks().IsLocked(ctx, p, opts.Tokens...)
	if err != nil {
		logger.Error("lock check failed for %s: %v", p, err)
		return true
	}
	return isLocked
}

// Copy copies src into dst under dstName.
//
// The returned status describes the operation root: 201 or 204 on
// success, an error status when the root itself could not be copied.
// Failures below the root are recorded in the returned collection; the
// root status stays successful in that case and the caller decides how
// to render the partial result.
func Copy(ctx context.Context, src store.Resource, dst store.Collection, dstName string, opts Options) (dav.Status, *ErrorCollection) {
	errs := NewErrorCollection()
	status := copyTree(ctx, src, dst, dstName, opts.Depth, opts, errs)
	return status, errs
}

func copyTree(ctx context.Context, src store.Resource, dst store.Collection, dstName string, depth dav.Depth, opts Options, errs *ErrorCollection) dav.Status {
	if err := ctx.Err(); err != nil {
		return dav.StatusInternalServerError
	}

	dstPath := path.Join(dst.Path(), dstName)
	if locked(ctx, dst, dstPath, opts) {
		return dav.StatusLocked
	}

	switch s := src.(type) {
	case store.Item:
		displaced, st := displaceCollection(ctx, dst, dstName, opts, errs)
		if !st.Success() {
			return st
		}
		result, err := s.CopyTo(ctx, dst, dstName, opts.Overwrite, opts.Principal)
		if err != nil {
			return store.StatusOf(err)
		}
		if displaced {
			// The destination existed before this operation even though
			// the store saw a fresh path.
			return dav.StatusNoContent
		}
		return result.Status

	case store.Collection:
		created, err := dst.CreateCollection(ctx, dstName, opts.Overwrite, opts.Principal)
		if err != nil {
			return store.StatusOf(err)
		}
		if depth == dav.DepthZero {
			return created.Status
		}

		children, err := s.ListChildren(ctx, opts.Principal)
		if err != nil {
			record(errs, opts.SrcPrefix, src.Path(), store.StatusOf(err))
			return created.Status
		}
		for _, child := range children {
			name := child.DisplayName()
			if st := copyTree(ctx, child, created.Collection, name, depth.Dec(), opts, errs); !st.Success() {
				// Record and stop descending; the subtree root's
				// failure already explains everything below it.
				record(errs, opts.DstPrefix, path.Join(dstPath, name), st)
			}
		}
		return created.Status

	default:
		return dav.StatusInternalServerError
	}
}

// displaceCollection clears the way for an item landing on a path
// currently held by a collection: the destination subtree is deleted
// through the lock-checked walk rather than blindly, so a locked
// descendant vetoes the replacement. Absent or non-collection
// destinations pass through untouched; the overwrite gate itself stays
// with the store. The returned bool reports whether a collection was
// actually removed, so the caller can answer 204 instead of 201.
func displaceCollection(ctx context.Context, dst store.Collection, dstName string, opts Options, errs *ErrorCollection) (bool, dav.Status) {
	if !opts.Overwrite {
		return false, dav.StatusOK
	}
	existing, err := dst.ResolveChild(ctx, dstName, opts.Principal)
	if err != nil {
		return false, dav.StatusOK
	}
	if _, ok := existing.(store.Collection); !ok {
		return false, dav.StatusOK
	}
	st := deleteTree(ctx, dst, dstName, opts.DstPrefix, opts, errs)
	return st.Success(), st
}

// Move moves the child named srcName of srcParent into dst under dstName.
//
// Items move atomically where the store supports it. Collections are
// recreated at the destination and their children moved individually, so
// per-child lock checks apply on both sides; the source collection is
// removed only after every child has moved out.
func Move(ctx context.Context, srcParent store.Collection, srcName string, dst store.Collection, dstName string, opts Options) (dav.Status, *ErrorCollection) {
	errs := NewErrorCollection()
	status := moveTree(ctx, srcParent, srcName, dst, dstName, opts, errs)
	return status, errs
}

func moveTree(ctx context.Context, srcParent store.Collection, srcName string, dst store.Collection, dstName string, opts Options, errs *ErrorCollection) dav.Status {
	if err := ctx.Err(); err != nil {
		return dav.StatusInternalServerError
	}

	src, err := srcParent.ResolveChild(ctx, srcName, opts.Principal)
	if err != nil {
		return store.StatusOf(err)
	}

	if locked(ctx, src, src.Path(), opts) {
		return dav.StatusLocked
	}
	dstPath := path.Join(dst.Path(), dstName)
	if locked(ctx, dst, dstPath, opts) {
		return dav.StatusLocked
	}

	switch s := src.(type) {
	case store.Item:
		displaced, st := displaceCollection(ctx, dst, dstName, opts, errs)
		if !st.Success() {
			return st
		}
		status, err := srcParent.MoveChild(ctx, srcName, dst, dstName, opts.Overwrite, opts.Principal)
		if err != nil {
			return store.StatusOf(err)
		}
		if displaced {
			return dav.StatusNoContent
		}
		return status

	case store.Collection:
		created, err := dst.CreateCollection(ctx, dstName, opts.Overwrite, opts.Principal)
		if err != nil {
			return store.StatusOf(err)
		}

		children, err := s.ListChildren(ctx, opts.Principal)
		if err != nil {
			record(errs, opts.SrcPrefix, src.Path(), store.StatusOf(err))
			return created.Status
		}

		clean := true
		for _, child := range children {
			name := child.DisplayName()
			st := moveTree(ctx, s, name, created.Collection, name, opts, errs)
			if st == dav.StatusFailedDependency {
				// The child's own failures are already recorded;
				// an entry for the child would only repeat them.
				clean = false
			} else if !st.Success() {
				record(errs, opts.SrcPrefix, child.Path(), st)
				clean = false
			}
		}

		// The emptied source collection goes away only when nothing
		// was left behind in it.
		if !clean {
			return dav.StatusFailedDependency
		}
		if err := srcParent.DeleteChild(ctx, srcName, opts.Principal); err != nil {
			record(errs, opts.SrcPrefix, src.Path(), store.StatusOf(err))
			return dav.StatusFailedDependency
		}
		return created.Status

	default:
		return dav.StatusInternalServerError
	}
}

// Delete removes the child named name of parent, recursively for
// collections.
//
// The walk is post-order. A descendant that cannot be removed (locked,
// forbidden) is recorded and keeps every ancestor up to the operation
// root alive, since a container with surviving children cannot be
// removed either.
func Delete(ctx context.Context, parent store.Collection, name string, opts Options) (dav.Status, *ErrorCollection) {
	errs := NewErrorCollection()
	status := deleteTree(ctx, parent, name, opts.SrcPrefix, opts, errs)
	return status, errs
}

func deleteTree(ctx context.Context, parent store.Collection, name, prefix string, opts Options, errs *ErrorCollection) dav.Status {
	if err := ctx.Err(); err != nil {
		return dav.StatusInternalServerError
	}

	child, err := parent.ResolveChild(ctx, name, opts.Principal)
	if err != nil {
		return store.StatusOf(err)
	}

	if locked(ctx, child, child.Path(), opts) {
		return dav.StatusLocked
	}

	if col, ok := child.(store.Collection); ok {
		children, err := col.ListChildren(ctx, opts.Principal)
		if err != nil {
			return store.StatusOf(err)
		}

		clean := true
		for _, grandchild := range children {
			st := deleteTree(ctx, col, grandchild.DisplayName(), prefix, opts, errs)
			if st == dav.StatusFailedDependency {
				clean = false
			} else if !st.Success() {
				record(errs, prefix, grandchild.Path(), st)
				clean = false
			}
		}
		if !clean {
			// Surviving children make the container undeletable; its
			// own entry would add nothing the child entries don't say.
			return dav.StatusFailedDependency
		}
	}

	if err := parent.DeleteChild(ctx, name, opts.Principal); err != nil {
		return store.StatusOf(err)
	}
	return dav.StatusNoContent
}
