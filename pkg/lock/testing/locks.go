package testing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
)

const testTimeout = time.Minute

// RunGrantTests verifies basic grant semantics and token shape.
func (suite *ManagerTestSuite) RunGrantTests(t *testing.T) {
	t.Run("grants an exclusive lock and reports it", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		l, err := m.Lock(ctx, "/docs/report.txt", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)
		require.NotNil(t, l)

		assert.True(t, strings.HasPrefix(l.Token, "urn:uuid:"), "token should be a urn:uuid URN, got %q", l.Token)
		assert.Equal(t, "/docs/report.txt", l.Path)
		assert.Equal(t, "alice", l.Owner)

		locked, err := m.IsLocked(ctx, "/docs/report.txt")
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("submitted token unlocks the gate", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		l, err := m.Lock(ctx, "/docs/report.txt", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		locked, err := m.IsLocked(ctx, "/docs/report.txt", l.Token)
		require.NoError(t, err)
		assert.False(t, locked, "IsLocked excluding the holder's token should report unlocked")
	})

	t.Run("lock paths are case-insensitive", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/Docs/Report.TXT", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		locked, err := m.IsLocked(ctx, "/docs/report.txt")
		require.NoError(t, err)
		assert.True(t, locked)
	})
}

// RunConflictTests verifies the grant conflict matrix, including depth
// semantics over ancestors and descendants.
func (suite *ManagerTestSuite) RunConflictTests(t *testing.T) {
	t.Run("exclusive blocks exclusive and shared on the same resource", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/a", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/a", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.ErrorIs(t, err, lock.ErrLocked)

		_, err = m.Lock(ctx, "/a", "bob", lock.ScopeShared, dav.DepthZero, testTimeout)
		assert.ErrorIs(t, err, lock.ErrLocked)
	})

	t.Run("shared locks coexist but block exclusive", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/a", "alice", lock.ScopeShared, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/a", "bob", lock.ScopeShared, dav.DepthZero, testTimeout)
		assert.NoError(t, err, "two shared locks on one resource should coexist")

		_, err = m.Lock(ctx, "/a", "carol", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.ErrorIs(t, err, lock.ErrLocked)
	})

	t.Run("infinite-depth ancestor lock covers descendants", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/dir", "alice", lock.ScopeExclusive, dav.DepthInfinity, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/dir/sub/file.txt", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.ErrorIs(t, err, lock.ErrLocked)

		locked, err := m.IsLocked(ctx, "/dir/sub/file.txt")
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("depth-zero ancestor lock does not cover descendants", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/dir", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/dir/file.txt", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.NoError(t, err)
	})

	t.Run("descendant lock blocks infinite-depth grant on ancestor", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/dir/sub/file.txt", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/dir", "bob", lock.ScopeExclusive, dav.DepthInfinity, testTimeout)
		assert.ErrorIs(t, err, lock.ErrLocked)

		// A depth-zero grant on the ancestor itself is fine.
		_, err = m.Lock(ctx, "/dir", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.NoError(t, err)
	})

	t.Run("sibling resources do not conflict", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/dir/a.txt", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		_, err = m.Lock(ctx, "/dir/b.txt", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.NoError(t, err)
	})
}

// RunRefreshTests verifies deadline extension by token.
func (suite *ManagerTestSuite) RunRefreshTests(t *testing.T) {
	t.Run("refresh extends the deadline", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		granted, err := m.Lock(ctx, "/a", "alice", lock.ScopeExclusive, dav.DepthZero, time.Minute)
		require.NoError(t, err)

		refreshed, err := m.Refresh(ctx, granted.Token, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, granted.Token, refreshed.Token)
		assert.True(t, refreshed.Expires.After(granted.Expires), "refresh should push the deadline out")
		assert.Equal(t, time.Hour, refreshed.Timeout)
	})

	t.Run("refresh of an unknown token fails", func(t *testing.T) {
		m := suite.newManager(t)

		_, err := m.Refresh(context.Background(), "urn:uuid:00000000-0000-0000-0000-000000000000", time.Minute)
		assert.ErrorIs(t, err, lock.ErrNoSuchLock)
	})
}

// RunUnlockTests verifies release by token.
func (suite *ManagerTestSuite) RunUnlockTests(t *testing.T) {
	t.Run("unlock releases the resource", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		granted, err := m.Lock(ctx, "/a", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		require.NoError(t, m.Unlock(ctx, granted.Token))

		locked, err := m.IsLocked(ctx, "/a")
		require.NoError(t, err)
		assert.False(t, locked)

		_, err = m.Lock(ctx, "/a", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.NoError(t, err, "resource should be grantable again after unlock")
	})

	t.Run("double unlock fails", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		granted, err := m.Lock(ctx, "/a", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		require.NoError(t, m.Unlock(ctx, granted.Token))
		assert.ErrorIs(t, m.Unlock(ctx, granted.Token), lock.ErrNoSuchLock)
	})
}

// RunExpiryTests verifies lazy wall-clock expiry: an expired lock is
// treated as absent without an explicit unlock.
func (suite *ManagerTestSuite) RunExpiryTests(t *testing.T) {
	t.Run("expired lock is treated as absent", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		granted, err := m.Lock(ctx, "/a", "alice", lock.ScopeExclusive, dav.DepthZero, 30*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(60 * time.Millisecond)

		locked, err := m.IsLocked(ctx, "/a")
		require.NoError(t, err)
		assert.False(t, locked, "expired lock should no longer gate the resource")

		_, err = m.Lock(ctx, "/a", "bob", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		assert.NoError(t, err, "a new grant should succeed after expiry without an explicit unlock")

		_, err = m.Refresh(ctx, granted.Token, testTimeout)
		assert.ErrorIs(t, err, lock.ErrNoSuchLock, "expired tokens cannot be refreshed")
	})
}

// RunDiscoveryTests verifies the ActiveLocks view used by lockdiscovery.
func (suite *ManagerTestSuite) RunDiscoveryTests(t *testing.T) {
	t.Run("lists own and covering ancestor locks", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		deep, err := m.Lock(ctx, "/dir", "alice", lock.ScopeShared, dav.DepthInfinity, testTimeout)
		require.NoError(t, err)
		own, err := m.Lock(ctx, "/dir/file.txt", "bob", lock.ScopeShared, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		active, err := m.ActiveLocks(ctx, "/dir/file.txt")
		require.NoError(t, err)

		tokens := make([]string, 0, len(active))
		for _, l := range active {
			tokens = append(tokens, l.Token)
		}
		assert.ElementsMatch(t, []string{deep.Token, own.Token}, tokens)
	})

	t.Run("depth-zero ancestor locks are not reported on children", func(t *testing.T) {
		m := suite.newManager(t)
		ctx := context.Background()

		_, err := m.Lock(ctx, "/dir", "alice", lock.ScopeExclusive, dav.DepthZero, testTimeout)
		require.NoError(t, err)

		active, err := m.ActiveLocks(ctx, "/dir/file.txt")
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}
