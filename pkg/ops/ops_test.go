package ops_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/ops"
	"github.com/mschuler/nwebdav/pkg/store"
	"github.com/mschuler/nwebdav/pkg/store/disk"
)

func newTestStore(t *testing.T) (*disk.Store, string) {
	t.Helper()
	base := t.TempDir()
	s, err := disk.New(base, nil)
	require.NoError(t, err)
	return s, base
}

func writeFile(t *testing.T, base string, rel string, content string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func resolveCollection(t *testing.T, s *disk.Store, uri string) store.Collection {
	t.Helper()
	col, err := s.ResolveCollection(context.Background(), uri, store.Anonymous)
	require.NoError(t, err)
	return col
}

func resolve(t *testing.T, s *disk.Store, uri string) store.Resource {
	t.Helper()
	r, err := s.Resolve(context.Background(), uri, store.Anonymous)
	require.NoError(t, err)
	return r
}

func readBack(t *testing.T, s *disk.Store, uri string) string {
	t.Helper()
	item, err := s.ResolveItem(context.Background(), uri, store.Anonymous)
	require.NoError(t, err)
	r, err := item.OpenReadable(context.Background(), store.Anonymous)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func exists(s *disk.Store, uri string) bool {
	_, err := s.Resolve(context.Background(), uri, store.Anonymous)
	return err == nil
}

func infOpts() ops.Options {
	return ops.Options{
		Overwrite: true,
		Depth:     dav.DepthInfinity,
		Principal: store.Anonymous,
	}
}

func TestCopyItem(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src.txt", "payload")
	ctx := context.Background()

	status, errs := ops.Copy(ctx, resolve(t, s, "/src.txt"), resolveCollection(t, s, "/"), "dst.txt", infOpts())
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "payload", readBack(t, s, "/dst.txt"))
}

func TestCopyItemNoOverwrite(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src.txt", "new")
	writeFile(t, base, "dst.txt", "old")
	ctx := context.Background()

	opts := infOpts()
	opts.Overwrite = false
	status, errs := ops.Copy(ctx, resolve(t, s, "/src.txt"), resolveCollection(t, s, "/"), "dst.txt", opts)
	assert.Equal(t, dav.StatusPreconditionFailed, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "old", readBack(t, s, "/dst.txt"))
}

func TestCopyCollectionDepthZero(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	ctx := context.Background()

	opts := infOpts()
	opts.Depth = dav.DepthZero
	status, errs := ops.Copy(ctx, resolve(t, s, "/src"), resolveCollection(t, s, "/"), "dst", opts)
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
	assert.True(t, exists(s, "/dst"))
	assert.False(t, exists(s, "/dst/a.txt"))
}

func TestCopyCollectionRecursive(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	writeFile(t, base, "src/sub/b.txt", "b")
	writeFile(t, base, "src/sub/deep/c.txt", "c")
	ctx := context.Background()

	status, errs := ops.Copy(ctx, resolve(t, s, "/src"), resolveCollection(t, s, "/"), "dst", infOpts())
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "a", readBack(t, s, "/dst/a.txt"))
	assert.Equal(t, "b", readBack(t, s, "/dst/sub/b.txt"))
	assert.Equal(t, "c", readBack(t, s, "/dst/sub/deep/c.txt"))
	// Source is untouched.
	assert.Equal(t, "a", readBack(t, s, "/src/a.txt"))
}

func TestCopyPartialFailure(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	writeFile(t, base, "src/b.txt", "b")
	writeFile(t, base, "src/c.txt", "c")
	ctx := context.Background()

	// A foreign lock on one destination path fails just that child.
	_, err := s.Locks().Lock(ctx, "/dst/b.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	status, errs := ops.Copy(ctx, resolve(t, s, "/src"), resolveCollection(t, s, "/"), "dst", infOpts())
	assert.Equal(t, dav.StatusCreated, status)

	require.False(t, errs.Empty())
	failures := errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/dst/b.txt", failures[0].Path)
	assert.Equal(t, dav.StatusLocked, failures[0].Status)

	assert.Equal(t, "a", readBack(t, s, "/dst/a.txt"))
	assert.Equal(t, "c", readBack(t, s, "/dst/c.txt"))
	assert.False(t, exists(s, "/dst/b.txt"))
}

func TestCopyItemOverCollection(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src.txt", "flat")
	writeFile(t, base, "dst/a.txt", "a")
	writeFile(t, base, "dst/sub/b.txt", "b")
	ctx := context.Background()

	// Overwriting a collection with an item replaces the whole subtree.
	status, errs := ops.Copy(ctx, resolve(t, s, "/src.txt"), resolveCollection(t, s, "/"), "dst", infOpts())
	assert.Equal(t, dav.StatusNoContent, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "flat", readBack(t, s, "/dst"))
	assert.False(t, exists(s, "/dst/a.txt"))
}

func TestCopyItemOverLockedCollection(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src.txt", "flat")
	writeFile(t, base, "dst/a.txt", "a")
	writeFile(t, base, "dst/sub/b.txt", "b")
	ctx := context.Background()

	// A foreign lock deep inside the destination subtree vetoes the
	// replacement; the subtree is not blown away around it.
	_, err := s.Locks().Lock(ctx, "/dst/sub/b.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	status, errs := ops.Copy(ctx, resolve(t, s, "/src.txt"), resolveCollection(t, s, "/"), "dst", infOpts())
	assert.False(t, status.Success())

	failures := errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/dst/sub/b.txt", failures[0].Path)
	assert.Equal(t, dav.StatusLocked, failures[0].Status)

	assert.Equal(t, "b", readBack(t, s, "/dst/sub/b.txt"))
}

func TestCopyWithSubmittedToken(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src.txt", "payload")
	ctx := context.Background()

	granted, err := s.Locks().Lock(ctx, "/dst.txt", "me", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	opts := infOpts()
	opts.Tokens = []string{granted.Token}
	status, errs := ops.Copy(ctx, resolve(t, s, "/src.txt"), resolveCollection(t, s, "/"), "dst.txt", opts)
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
}

func TestMoveItem(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "moving")
	ctx := context.Background()

	status, errs := ops.Move(ctx, resolveCollection(t, s, "/src"), "a.txt", resolveCollection(t, s, "/"), "moved.txt", infOpts())
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "moving", readBack(t, s, "/moved.txt"))
	assert.False(t, exists(s, "/src/a.txt"))
}

func TestMoveCollection(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	writeFile(t, base, "src/sub/b.txt", "b")
	ctx := context.Background()

	status, errs := ops.Move(ctx, resolveCollection(t, s, "/"), "src", resolveCollection(t, s, "/"), "dst", infOpts())
	assert.Equal(t, dav.StatusCreated, status)
	assert.True(t, errs.Empty())
	assert.Equal(t, "a", readBack(t, s, "/dst/a.txt"))
	assert.Equal(t, "b", readBack(t, s, "/dst/sub/b.txt"))
	assert.False(t, exists(s, "/src"))
}

func TestMovePartialFailure(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	writeFile(t, base, "src/b.txt", "b")
	writeFile(t, base, "src/c.txt", "c")
	ctx := context.Background()

	_, err := s.Locks().Lock(ctx, "/src/b.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	status, errs := ops.Move(ctx, resolveCollection(t, s, "/"), "src", resolveCollection(t, s, "/"), "dst", infOpts())
	assert.False(t, status.Success())

	failures := errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/src/b.txt", failures[0].Path)
	assert.Equal(t, dav.StatusLocked, failures[0].Status)

	// Unlocked children moved; the locked one and its still-needed
	// source ancestor survive.
	assert.Equal(t, "a", readBack(t, s, "/dst/a.txt"))
	assert.Equal(t, "c", readBack(t, s, "/dst/c.txt"))
	assert.True(t, exists(s, "/src/b.txt"))
	assert.False(t, exists(s, "/src/a.txt"))
}

func TestMoveLockedRoot(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "src/a.txt", "a")
	ctx := context.Background()

	_, err := s.Locks().Lock(ctx, "/src", "someone-else", lock.ScopeExclusive, dav.DepthInfinity, time.Minute)
	require.NoError(t, err)

	status, errs := ops.Move(ctx, resolveCollection(t, s, "/"), "src", resolveCollection(t, s, "/"), "dst", infOpts())
	assert.Equal(t, dav.StatusLocked, status)
	assert.True(t, errs.Empty())
	assert.True(t, exists(s, "/src/a.txt"))
	assert.False(t, exists(s, "/dst"))
}

func TestFailureHrefsCarryMountPrefixes(t *testing.T) {
	srcStore, srcBase := newTestStore(t)
	dstStore, dstBase := newTestStore(t)
	writeFile(t, srcBase, "src/a.txt", "a")
	writeFile(t, srcBase, "src/b.txt", "b")
	writeFile(t, dstBase, "taken/held.txt", "x")
	ctx := context.Background()

	// Source-side failure: a stuck child of a moved collection.
	_, err := srcStore.Locks().Lock(ctx, "/src/b.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)
	// Destination-side failure: a lock under a collection that an item
	// copy would displace.
	_, err = dstStore.Locks().Lock(ctx, "/taken/held.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	opts := infOpts()
	opts.SrcPrefix = "/files"
	opts.DstPrefix = "/backup"

	_, errs := ops.Move(ctx, resolveCollection(t, srcStore, "/"), "src", resolveCollection(t, dstStore, "/"), "src", opts)
	failures := errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/files/src/b.txt", failures[0].Path)

	_, errs = ops.Copy(ctx, resolve(t, srcStore, "/src/a.txt"), resolveCollection(t, dstStore, "/"), "taken", opts)
	failures = errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/backup/taken/held.txt", failures[0].Path)
	assert.Equal(t, dav.StatusLocked, failures[0].Status)
}

func TestDeleteItem(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "x")
	ctx := context.Background()

	status, errs := ops.Delete(ctx, resolveCollection(t, s, "/"), "a.txt", infOpts())
	assert.Equal(t, dav.StatusNoContent, status)
	assert.True(t, errs.Empty())
	assert.False(t, exists(s, "/a.txt"))
}

func TestDeleteCollectionRecursive(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "dir/a.txt", "a")
	writeFile(t, base, "dir/sub/b.txt", "b")
	ctx := context.Background()

	status, errs := ops.Delete(ctx, resolveCollection(t, s, "/"), "dir", infOpts())
	assert.Equal(t, dav.StatusNoContent, status)
	assert.True(t, errs.Empty())
	assert.False(t, exists(s, "/dir"))
}

func TestDeletePartialFailure(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "dir/a.txt", "a")
	writeFile(t, base, "dir/sub/b.txt", "b")
	writeFile(t, base, "dir/sub/c.txt", "c")
	ctx := context.Background()

	_, err := s.Locks().Lock(ctx, "/dir/sub/b.txt", "someone-else", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	status, errs := ops.Delete(ctx, resolveCollection(t, s, "/"), "dir", infOpts())
	assert.False(t, status.Success())

	// Only the truly failing resource appears; ancestors that survive
	// because of it are not listed separately.
	failures := errs.Items()
	require.Len(t, failures, 1)
	assert.Equal(t, "/dir/sub/b.txt", failures[0].Path)
	assert.Equal(t, dav.StatusLocked, failures[0].Status)

	assert.False(t, exists(s, "/dir/a.txt"))
	assert.False(t, exists(s, "/dir/sub/c.txt"))
	assert.True(t, exists(s, "/dir/sub/b.txt"))
	assert.True(t, exists(s, "/dir"))
}

func TestDeleteWithSubmittedToken(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "x")
	ctx := context.Background()

	granted, err := s.Locks().Lock(ctx, "/a.txt", "me", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	opts := infOpts()
	opts.Tokens = []string{granted.Token}
	status, errs := ops.Delete(ctx, resolveCollection(t, s, "/"), "a.txt", opts)
	assert.Equal(t, dav.StatusNoContent, status)
	assert.True(t, errs.Empty())
	assert.False(t, exists(s, "/a.txt"))
}
