package disk_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/store"
)

func davName(local string) props.Name {
	return props.Name{Space: dav.Namespace, Local: local}
}

func getProp(t *testing.T, r store.Resource, local string) any {
	t.Helper()
	value, status := r.Properties().Get(context.Background(), r, davName(local))
	require.Equal(t, dav.StatusOK, status, "property %s", local)
	return value
}

func TestItemProperties(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "docs/report.txt", "twelve bytes")
	ctx := context.Background()

	item, err := s.ResolveItem(ctx, "/docs/report.txt", store.Anonymous)
	require.NoError(t, err)

	assert.Equal(t, "report.txt", getProp(t, item, "displayname"))
	assert.Equal(t, "12", getProp(t, item, "getcontentlength"))
	assert.Equal(t, dav.ResourceType{Collection: false}, getProp(t, item, "resourcetype"))
	assert.Equal(t, "0", getProp(t, item, "ishidden"))

	// getlastmodified is an HTTP-date.
	modified, err := http.ParseTime(getProp(t, item, "getlastmodified").(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), modified, time.Minute)

	// creationdate is RFC 3339.
	_, err = time.Parse(time.RFC3339, getProp(t, item, "creationdate").(string))
	assert.NoError(t, err)
}

func TestCollectionProperties(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "docs/a.txt", "a")
	ctx := context.Background()

	col, err := s.ResolveCollection(ctx, "/docs", store.Anonymous)
	require.NoError(t, err)

	assert.Equal(t, dav.ResourceType{Collection: true}, getProp(t, col, "resourcetype"))
	assert.Equal(t, dav.SupportedLock{}, getProp(t, col, "supportedlock"))

	// Collections carry no content-derived properties.
	_, status := col.Properties().Get(ctx, col, davName("getcontentlength"))
	assert.Equal(t, dav.StatusNotFound, status)
	_, status = col.Properties().Get(ctx, col, davName("getetag"))
	assert.Equal(t, dav.StatusNotFound, status)
}

func TestContentType(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "image.png", "not really a png")
	writeFile(t, base, "mystery.zzz", "?")
	ctx := context.Background()

	png, err := s.ResolveItem(ctx, "/image.png", store.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, "image/png", getProp(t, png, "getcontenttype"))

	unknown, err := s.ResolveItem(ctx, "/mystery.zzz", store.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", getProp(t, unknown, "getcontenttype"))
}

func TestEtag(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "same content")
	writeFile(t, base, "b.txt", "same content")
	writeFile(t, base, "c.txt", "different content")
	ctx := context.Background()

	a, err := s.ResolveItem(ctx, "/a.txt", store.Anonymous)
	require.NoError(t, err)
	b, err := s.ResolveItem(ctx, "/b.txt", store.Anonymous)
	require.NoError(t, err)
	c, err := s.ResolveItem(ctx, "/c.txt", store.Anonymous)
	require.NoError(t, err)

	etagA := getProp(t, a, "getetag").(string)
	assert.Regexp(t, `^"[0-9a-f]{64}"$`, etagA)
	assert.Equal(t, etagA, getProp(t, b, "getetag"))
	assert.NotEqual(t, etagA, getProp(t, c, "getetag"))

	// The hash getter is flagged expensive so enumeration can skip it.
	d, ok := a.Properties().Lookup(davName("getetag"))
	require.True(t, ok)
	assert.True(t, d.Expensive)
	cheap, ok := a.Properties().Lookup(davName("displayname"))
	require.True(t, ok)
	assert.False(t, cheap.Expensive)
}

func TestSetLastModified(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "x")
	ctx := context.Background()

	item, err := s.ResolveItem(ctx, "/a.txt", store.Anonymous)
	require.NoError(t, err)

	want := time.Date(2020, 6, 15, 10, 30, 0, 0, time.UTC)
	status := item.Properties().Set(ctx, item, davName("getlastmodified"), want.Format(http.TimeFormat))
	require.Equal(t, dav.StatusOK, status)
	assert.Equal(t, want.Format(http.TimeFormat), getProp(t, item, "getlastmodified"))

	status = item.Properties().Set(ctx, item, davName("getlastmodified"), "not a date")
	assert.Equal(t, dav.StatusInternalServerError, status)
}

func TestSetStatuses(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "x")
	ctx := context.Background()

	item, err := s.ResolveItem(ctx, "/a.txt", store.Anonymous)
	require.NoError(t, err)

	// Read-only properties refuse the write; unknown ones don't exist.
	assert.Equal(t, dav.StatusForbidden,
		item.Properties().Set(ctx, item, davName("getcontentlength"), "99"))
	assert.Equal(t, dav.StatusNotFound,
		item.Properties().Set(ctx, item, davName("nosuchprop"), "v"))
}

func TestHiddenFlag(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, ".secret", "x")
	ctx := context.Background()

	item, err := s.ResolveItem(ctx, "/.secret", store.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, "1", getProp(t, item, "ishidden"))
}

func TestLockDiscoveryProperty(t *testing.T) {
	s, base := newTestStore(t)
	writeFile(t, base, "a.txt", "x")
	ctx := context.Background()

	item, err := s.ResolveItem(ctx, "/a.txt", store.Anonymous)
	require.NoError(t, err)

	empty := getProp(t, item, "lockdiscovery").([]lock.Lock)
	assert.Empty(t, empty)

	granted, err := s.Locks().Lock(ctx, "/a.txt", "user", lock.ScopeExclusive, dav.DepthZero, time.Minute)
	require.NoError(t, err)

	active := getProp(t, item, "lockdiscovery").([]lock.Lock)
	require.Len(t, active, 1)
	assert.Equal(t, granted.Token, active[0].Token)
}
