package disk

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/store"
)

// collection is a disk-backed container resource: one directory.
type collection struct {
	resource
}

var _ store.Collection = (*collection)(nil)

// Properties implements store.Resource.
func (c *collection) Properties() *props.Registry {
	return collectionRegistry
}

// childPaths resolves a child name to its filesystem and tree paths,
// going through full containment checking so a hostile name can never
// address anything outside the directory.
func (c *collection) childPaths(name string) (fsPath, treePath string, err error) {
	if err := validateChildName(name); err != nil {
		return "", "", err
	}
	return c.store.resolvePath(path.Join(c.tree, name))
}

// ListChildren implements store.Collection.
func (c *collection) ListChildren(ctx context.Context, principal store.Principal) ([]store.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(c.fsPath)
	if err != nil {
		return nil, mapOSError("list", c.tree, err)
	}

	children := make([]store.Resource, 0, len(entries))
	for _, entry := range entries {
		fsPath := filepath.Join(c.fsPath, entry.Name())
		treePath := path.Join(c.tree, entry.Name())
		if entry.IsDir() {
			children = append(children, c.store.newCollection(fsPath, treePath))
		} else {
			children = append(children, c.store.newItem(fsPath, treePath))
		}
	}
	return children, nil
}

// ResolveChild implements store.Collection.
func (c *collection) ResolveChild(ctx context.Context, name string, principal store.Principal) (store.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fsPath, treePath, err := c.childPaths(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		return nil, mapOSError("resolve-child", treePath, err)
	}
	if info.IsDir() {
		return c.store.newCollection(fsPath, treePath), nil
	}
	return c.store.newItem(fsPath, treePath), nil
}

// CreateItem implements store.Collection.
//
// Prior existence is checked at the fully-resolved destination path, not
// against the collection's listing, so the 201-vs-204 decision and the
// overwrite gate agree with what the filesystem will actually touch.
func (c *collection) CreateItem(ctx context.Context, name string, overwrite bool, principal store.Principal) (store.ItemResult, error) {
	if err := ctx.Err(); err != nil {
		return store.ItemResult{}, err
	}

	fsPath, treePath, err := c.childPaths(name)
	if err != nil {
		return store.ItemResult{}, err
	}

	existed := false
	if info, statErr := os.Stat(fsPath); statErr == nil {
		existed = true
		if !overwrite {
			return store.ItemResult{}, &store.StoreError{
				Code:    store.ErrPreconditionFailed,
				Message: "destination exists and overwrite is disabled",
				Path:    treePath,
			}
		}
		if info.IsDir() {
			// Only an empty directory may be displaced here. Subtree
			// removal belongs to the recursive engine, which checks
			// descendant locks on the way down; a non-empty directory
			// surfaces as forbidden.
			if rmErr := os.Remove(fsPath); rmErr != nil {
				return store.ItemResult{}, mapOSError("create-item", treePath, rmErr)
			}
		}
	} else if !os.IsNotExist(statErr) {
		return store.ItemResult{}, mapOSError("create-item", treePath, statErr)
	}

	f, err := os.OpenFile(fsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return store.ItemResult{}, mapOSError("create-item", treePath, err)
	}
	if err := f.Close(); err != nil {
		return store.ItemResult{}, mapOSError("create-item", treePath, err)
	}

	return store.ItemResult{
		Status: statStatus(existed),
		Item:   c.store.newItem(fsPath, treePath),
	}, nil
}

// CreateCollection implements store.Collection.
func (c *collection) CreateCollection(ctx context.Context, name string, overwrite bool, principal store.Principal) (store.CollectionResult, error) {
	if err := ctx.Err(); err != nil {
		return store.CollectionResult{}, err
	}

	fsPath, treePath, err := c.childPaths(name)
	if err != nil {
		return store.CollectionResult{}, err
	}

	existed := false
	if info, statErr := os.Stat(fsPath); statErr == nil {
		existed = true
		if !overwrite {
			return store.CollectionResult{}, &store.StoreError{
				Code:    store.ErrPreconditionFailed,
				Message: "destination exists and overwrite is disabled",
				Path:    treePath,
			}
		}
		if info.IsDir() {
			// An existing directory already satisfies the request.
			return store.CollectionResult{
				Status:     dav.StatusNoContent,
				Collection: c.store.newCollection(fsPath, treePath),
			}, nil
		}
		if rmErr := os.Remove(fsPath); rmErr != nil {
			return store.CollectionResult{}, mapOSError("create-collection", treePath, rmErr)
		}
	} else if !os.IsNotExist(statErr) {
		return store.CollectionResult{}, mapOSError("create-collection", treePath, statErr)
	}

	if err := os.Mkdir(fsPath, 0o755); err != nil {
		return store.CollectionResult{}, mapOSError("create-collection", treePath, err)
	}

	return store.CollectionResult{
		Status:     statStatus(existed),
		Collection: c.store.newCollection(fsPath, treePath),
	}, nil
}

// DeleteChild implements store.Collection. Directories are removed
// non-recursively; a non-empty one surfaces as forbidden.
func (c *collection) DeleteChild(ctx context.Context, name string, principal store.Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fsPath, treePath, err := c.childPaths(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fsPath); err != nil {
		return mapOSError("delete", treePath, err)
	}
	return nil
}

// MoveChild implements store.Collection.
//
// Same-store moves are a single atomic rename. Cross-store moves fall
// back to CopyTo followed by source deletion, which only runs after the
// copy reported success.
func (c *collection) MoveChild(ctx context.Context, srcName string, dst store.Collection, dstName string, overwrite bool, principal store.Principal) (dav.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	srcFS, srcTree, err := c.childPaths(srcName)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(srcFS)
	if err != nil {
		return 0, mapOSError("move", srcTree, err)
	}
	if info.IsDir() {
		return 0, &store.StoreError{
			Code:    store.ErrInvalidOperation,
			Message: "collections cannot be moved as a single operation",
			Path:    srcTree,
		}
	}

	if dstCol, ok := dst.(*collection); ok && dstCol.store == c.store {
		return c.renameInto(srcFS, srcTree, dstCol, dstName, overwrite)
	}

	src := c.store.newItem(srcFS, srcTree)
	copied, err := src.CopyTo(ctx, dst, dstName, overwrite, principal)
	if err != nil {
		return 0, err
	}
	if err := c.DeleteChild(ctx, srcName, principal); err != nil {
		return 0, err
	}
	return copied.Status, nil
}

func (c *collection) renameInto(srcFS, srcTree string, dst *collection, dstName string, overwrite bool) (dav.Status, error) {
	dstFS, dstTree, err := dst.childPaths(dstName)
	if err != nil {
		return 0, err
	}

	existed := false
	if _, statErr := os.Stat(dstFS); statErr == nil {
		existed = true
		if !overwrite {
			return 0, &store.StoreError{
				Code:    store.ErrPreconditionFailed,
				Message: "destination exists and overwrite is disabled",
				Path:    dstTree,
			}
		}
	} else if !os.IsNotExist(statErr) {
		return 0, mapOSError("move", dstTree, statErr)
	}

	if err := os.Rename(srcFS, dstFS); err != nil {
		return 0, mapOSError("move", srcTree, err)
	}
	return statStatus(existed), nil
}
