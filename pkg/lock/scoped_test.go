package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	lockmemory "github.com/mschuler/nwebdav/pkg/lock/memory"
)

func TestWithPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	shared := lockmemory.New()
	defer shared.Close()

	docs := lock.WithPrefix(shared, "/docs")
	media := lock.WithPrefix(shared, "/media")

	_, err := docs.Lock(ctx, "/a.txt", "alice", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	lockedDocs, err := docs.IsLocked(ctx, "/a.txt")
	require.NoError(t, err)
	assert.True(t, lockedDocs, "lock must be visible through the view that granted it")

	lockedMedia, err := media.IsLocked(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, lockedMedia, "same-named path under another prefix must not be covered")
}

func TestWithPrefixTokenOperations(t *testing.T) {
	ctx := context.Background()
	shared := lockmemory.New()
	defer shared.Close()

	docs := lock.WithPrefix(shared, "/docs")

	granted, err := docs.Lock(ctx, "/b.txt", "bob", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/docs/b.txt", granted.Path)

	// Token-addressed calls work through the view.
	refreshed, err := docs.Refresh(ctx, granted.Token, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, granted.Token, refreshed.Token)

	// The token excuses the lock on the rebased path.
	covered, err := docs.IsLocked(ctx, "/b.txt", granted.Token)
	require.NoError(t, err)
	assert.False(t, covered)

	require.NoError(t, docs.Unlock(ctx, granted.Token))

	covered, err = docs.IsLocked(ctx, "/b.txt")
	require.NoError(t, err)
	assert.False(t, covered)
}

func TestWithPrefixDepthInfinity(t *testing.T) {
	ctx := context.Background()
	shared := lockmemory.New()
	defer shared.Close()

	docs := lock.WithPrefix(shared, "/docs")
	media := lock.WithPrefix(shared, "/media")

	_, err := docs.Lock(ctx, "/dir", "alice", lock.ScopeExclusive, dav.DepthInfinity, time.Minute)
	require.NoError(t, err)

	covered, err := docs.IsLocked(ctx, "/dir/nested/file.txt")
	require.NoError(t, err)
	assert.True(t, covered, "infinite-depth lock covers descendants within the view")

	covered, err = media.IsLocked(ctx, "/dir/nested/file.txt")
	require.NoError(t, err)
	assert.False(t, covered, "coverage must not leak across prefixes")
}

func TestWithPrefixRootPassthrough(t *testing.T) {
	shared := lockmemory.New()
	defer shared.Close()

	assert.Same(t, shared, lock.WithPrefix(shared, "/"))
	assert.Same(t, shared, lock.WithPrefix(shared, ""))

	// Closing a view must not close the shared manager.
	view := lock.WithPrefix(shared, "/docs")
	require.NoError(t, view.Close())

	_, err := shared.Lock(context.Background(), "/x", "o", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	assert.NoError(t, err)
}
