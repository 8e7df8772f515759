package disk

import (
	"context"
	"io"
	"os"

	"github.com/mschuler/nwebdav/internal/bufpool"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/store"
)

// item is a disk-backed leaf resource: one regular file.
type item struct {
	resource
}

var _ store.Item = (*item)(nil)

// Properties implements store.Resource.
func (i *item) Properties() *props.Registry {
	return itemRegistry
}

// OpenReadable implements store.Item.
func (i *item) OpenReadable(ctx context.Context, principal store.Principal) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(i.fsPath)
	if err != nil {
		return nil, mapOSError("open-read", i.tree, err)
	}
	return f, nil
}

// OpenWritable implements store.Item.
func (i *item) OpenWritable(ctx context.Context, principal store.Principal) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(i.fsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, mapOSError("open-write", i.tree, err)
	}
	return f, nil
}

// CopyTo implements store.Item.
//
// A same-substrate destination is copied with a pooled transfer buffer
// directly between files. A foreign destination goes through dst's own
// CreateItem contract and the content is streamed across; either way both
// streams are closed on every exit path.
func (i *item) CopyTo(ctx context.Context, dst store.Collection, name string, overwrite bool, principal store.Principal) (store.ItemResult, error) {
	if err := ctx.Err(); err != nil {
		return store.ItemResult{}, err
	}
	if err := validateChildName(name); err != nil {
		return store.ItemResult{}, err
	}

	created, err := dst.CreateItem(ctx, name, overwrite, principal)
	if err != nil {
		return store.ItemResult{}, err
	}

	src, err := i.OpenReadable(ctx, principal)
	if err != nil {
		return store.ItemResult{}, err
	}

	sink, err := created.Item.OpenWritable(ctx, principal)
	if err != nil {
		src.Close()
		return store.ItemResult{}, err
	}

	buf := bufpool.Get()
	_, copyErr := io.CopyBuffer(sink, src, buf)
	bufpool.Put(buf)

	closeErr := sink.Close()
	src.Close()

	if copyErr != nil {
		return store.ItemResult{}, mapOSError("copy", created.Item.Path(), copyErr)
	}
	if closeErr != nil {
		return store.ItemResult{}, mapOSError("copy", created.Item.Path(), closeErr)
	}

	return created, nil
}

// statStatus resolves CreateItem/CreateCollection result statuses: 201
// when nothing existed at the destination beforehand, 204 otherwise.
func statStatus(existed bool) dav.Status {
	if existed {
		return dav.StatusNoContent
	}
	return dav.StatusCreated
}
