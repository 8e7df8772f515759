// Package store defines the resource tree contract of the WebDAV engine.
//
// A Store resolves request paths to resources. Resources form a closed set
// of two variants — Item (a leaf with byte content) and Collection (a
// container) — behind capability interfaces, so callers can treat both
// uniformly where the protocol requires it while the recursive operation
// engine dispatches on the concrete variant where behavior differs.
//
// The disk-backed reference implementation lives in store/disk; any other
// backend must satisfy the same contracts.
package store

import (
	"context"
	"io"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/props"
)

// Principal is the caller identity passed to every mutating operation.
//
// The core does not implement authorization policy itself; the principal
// is threaded through as a hook for backends that do.
type Principal string

// Anonymous is the principal used for unauthenticated requests.
const Anonymous Principal = "anonymous"

// Resource is a node in the resource tree: either an Item or a Collection.
//
// Identity is defined by normalized, case-insensitive full path: two
// resource handles with the same Key are interchangeable even if they were
// instantiated separately.
type Resource interface {
	// Path returns the tree-absolute path of the resource, e.g.
	// "/docs/a.txt". The root collection's path is "/".
	Path() string

	// Key returns the case-insensitive identity key of the resource.
	// Handles for the same underlying resource always return equal keys,
	// making keys usable for set/map-based de-duplication.
	Key() string

	// DisplayName returns the last path segment as shown to clients.
	DisplayName() string

	// Properties returns the property registry of the resource's type.
	// Registries are shared across all instances of a type.
	Properties() *props.Registry

	// Locks returns the locking manager governing this resource.
	// All resources within one store share a single manager instance.
	Locks() lock.Manager
}

// ItemResult is the outcome of an operation that produces an item: the
// protocol status plus, on success, a usable handle, so callers don't need
// a second lookup.
type ItemResult struct {
	Status dav.Status
	Item   Item
}

// CollectionResult is the outcome of an operation that produces a
// collection.
type CollectionResult struct {
	Status     dav.Status
	Collection Collection
}

// Item is a leaf resource with byte content.
type Item interface {
	Resource

	// OpenReadable opens the item's content for reading. The two stream
	// directions are independent: opening one does not imply the other
	// is open. Callers own the returned stream and must close it.
	OpenReadable(ctx context.Context, principal Principal) (io.ReadCloser, error)

	// OpenWritable opens the item's content for writing, truncating
	// existing content. Callers own the returned stream and must close
	// it.
	OpenWritable(ctx context.Context, principal Principal) (io.WriteCloser, error)

	// CopyTo copies the item's content into dst under name.
	//
	// If dst exists and overwrite is false the copy fails with
	// precondition-failed; otherwise the result reports 201 Created for
	// a fresh destination or 204 No Content for an overwrite. When dst
	// belongs to a different kind of store, the destination item is
	// created through dst's own creation contract and content is
	// streamed across, with both streams closed on every exit path.
	CopyTo(ctx context.Context, dst Collection, name string, overwrite bool, principal Principal) (ItemResult, error)
}

// Collection is a container resource.
type Collection interface {
	Resource

	// ListChildren enumerates the immediate children (items and
	// sub-collections). Enumeration does not recurse; each child is
	// visited exactly once, in no guaranteed order between kinds.
	ListChildren(ctx context.Context, principal Principal) ([]Resource, error)

	// ResolveChild looks up an immediate child by name.
	// A missing child yields a not-found StoreError.
	ResolveChild(ctx context.Context, name string, principal Principal) (Resource, error)

	// CreateItem creates (or truncates) a child item.
	//
	// If an item of that name exists and overwrite is false, the call
	// fails with precondition-failed; otherwise the result reports 201
	// Created or 204 No Content depending on prior existence, checked at
	// the fully-resolved destination path.
	CreateItem(ctx context.Context, name string, overwrite bool, principal Principal) (ItemResult, error)

	// CreateCollection creates a child collection, with semantics
	// analogous to CreateItem keyed on directory existence.
	CreateCollection(ctx context.Context, name string, overwrite bool, principal Principal) (CollectionResult, error)

	// DeleteChild removes an immediate child by name. Deleting a
	// collection is non-recursive: only an empty collection can be
	// removed this way. Recursive subtree deletion is the caller's
	// responsibility, walking children explicitly.
	DeleteChild(ctx context.Context, name string, principal Principal) error

	// MoveChild moves the item named srcName into dst under dstName.
	//
	// When both ends are backed by the same storage substrate the move
	// is an atomic rename; otherwise it falls back to copy followed by
	// source deletion after a confirmed success. Collections are never
	// moved directly as a single operation — attempting it fails with
	// invalid-operation; a mover recreates the destination collection
	// and moves children individually, preserving per-child lock checks.
	// The returned status reports 201 Created or 204 No Content exactly
	// like CopyTo.
	MoveChild(ctx context.Context, srcName string, dst Collection, dstName string, overwrite bool, principal Principal) (dav.Status, error)
}

// Store resolves request paths to resources.
type Store interface {
	// Resolve resolves a path to either resource variant.
	Resolve(ctx context.Context, uri string, principal Principal) (Resource, error)

	// ResolveItem resolves a path to an item. A path naming a
	// collection, or nothing at all, yields a not-found StoreError.
	ResolveItem(ctx context.Context, uri string, principal Principal) (Item, error)

	// ResolveCollection resolves a path to a collection, with the same
	// absence semantics as ResolveItem.
	ResolveCollection(ctx context.Context, uri string, principal Principal) (Collection, error)
}
