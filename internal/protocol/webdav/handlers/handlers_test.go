package handlers_test

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/internal/protocol/webdav/handlers"
	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store/disk"
)

type fixture struct {
	handler *handlers.Handler
	base    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base := t.TempDir()
	s, err := disk.New(base, nil)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.AddMount(&registry.Mount{Name: "root", Prefix: "/", Store: s}))

	return &fixture{
		handler: handlers.New(reg, nil, handlers.Config{}),
		base:    base,
	}
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(f.base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestOptions(t *testing.T) {
	f := newFixture(t)

	rec := f.do("OPTIONS", "/", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "1, 2", rec.Header().Get("DAV"))
	assert.Contains(t, rec.Header().Get("Allow"), "PROPFIND")
	assert.Contains(t, rec.Header().Get("Allow"), "LOCK")
	assert.Equal(t, "DAV", rec.Header().Get("MS-Author-Via"))
}

func TestPutGetRoundtrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do("PUT", "/file.txt", "hello webdav", nil)
	assert.Equal(t, 201, rec.Code)

	rec = f.do("GET", "/file.txt", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "hello webdav", rec.Body.String())

	// Replacing reports 204.
	rec = f.do("PUT", "/file.txt", "updated", nil)
	assert.Equal(t, 204, rec.Code)

	rec = f.do("GET", "/file.txt", "", nil)
	assert.Equal(t, "updated", rec.Body.String())
}

func TestPutMissingParent(t *testing.T) {
	f := newFixture(t)

	rec := f.do("PUT", "/no/such/dir/file.txt", "x", nil)
	assert.Equal(t, 409, rec.Code)
}

func TestGetVariants(t *testing.T) {
	f := newFixture(t)
	f.write(t, "docs/a.txt", "content")

	rec := f.do("GET", "/missing.txt", "", nil)
	assert.Equal(t, 404, rec.Code)

	rec = f.do("GET", "/docs", "", nil)
	assert.Equal(t, 405, rec.Code)

	rec = f.do("HEAD", "/docs/a.txt", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMkcol(t *testing.T) {
	f := newFixture(t)

	rec := f.do("MKCOL", "/newdir", "", nil)
	assert.Equal(t, 201, rec.Code)

	// Existing target refuses.
	rec = f.do("MKCOL", "/newdir", "", nil)
	assert.Equal(t, 405, rec.Code)

	rec = f.do("MKCOL", "/missing/child", "", nil)
	assert.Equal(t, 409, rec.Code)

	rec = f.do("MKCOL", "/withbody", "<x/>", nil)
	assert.Equal(t, 415, rec.Code)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dir/a.txt", "a")
	f.write(t, "dir/sub/b.txt", "b")

	rec := f.do("DELETE", "/dir/a.txt", "", nil)
	assert.Equal(t, 204, rec.Code)

	rec = f.do("DELETE", "/dir", "", nil)
	assert.Equal(t, 204, rec.Code)

	rec = f.do("DELETE", "/dir", "", nil)
	assert.Equal(t, 404, rec.Code)

	rec = f.do("DELETE", "/", "", nil)
	assert.Equal(t, 403, rec.Code)
}

func TestPropfindFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "four")

	rec := f.do("PROPFIND", "/a.txt", "", map[string]string{"Depth": "0"})
	require.Equal(t, 207, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<D:href>/a.txt</D:href>")
	assert.Contains(t, body, "<D:displayname>a.txt</D:displayname>")
	assert.Contains(t, body, "<D:getcontentlength>4</D:getcontentlength>")
	// allprop excludes the expensive content hash.
	assert.NotContains(t, body, "getetag")
}

func TestPropfindDepthOne(t *testing.T) {
	f := newFixture(t)
	f.write(t, "docs/a.txt", "a")
	f.write(t, "docs/sub/deep.txt", "deep")

	rec := f.do("PROPFIND", "/docs", "", map[string]string{"Depth": "1"})
	require.Equal(t, 207, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<D:href>/docs/</D:href>")
	assert.Contains(t, body, "<D:href>/docs/a.txt</D:href>")
	assert.Contains(t, body, "<D:href>/docs/sub/</D:href>")
	assert.NotContains(t, body, "deep.txt")
}

func TestPropfindExplicitProps(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "content")

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:prop><D:getetag/><D:nosuch/></D:prop></D:propfind>`
	rec := f.do("PROPFIND", "/a.txt", body, map[string]string{"Depth": "0"})
	require.Equal(t, 207, rec.Code)

	respBody := rec.Body.String()
	// Explicitly requested expensive properties are computed.
	assert.Contains(t, respBody, "<D:getetag>")
	// Unknown ones come back name-only under 404.
	assert.Contains(t, respBody, "<D:nosuch/>")
	assert.Contains(t, respBody, "HTTP/1.1 404 Not Found")
}

func TestPropfindBadRequest(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "x")

	rec := f.do("PROPFIND", "/a.txt", "", map[string]string{"Depth": "2"})
	assert.Equal(t, 400, rec.Code)

	rec = f.do("PROPFIND", "/a.txt", "<broken", map[string]string{"Depth": "0"})
	assert.Equal(t, 400, rec.Code)

	rec = f.do("PROPFIND", "/missing", "", map[string]string{"Depth": "0"})
	assert.Equal(t, 404, rec.Code)
}

func TestProppatch(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "x")

	body := `<?xml version="1.0"?>
<D:propertyupdate xmlns:D="DAV:">
  <D:set><D:prop><D:getlastmodified>Tue, 15 Nov 1994 12:45:26 GMT</D:getlastmodified></D:prop></D:set>
  <D:set><D:prop><D:getcontentlength>1</D:getcontentlength></D:prop></D:set>
  <D:remove><D:prop><D:displayname/></D:prop></D:remove>
</D:propertyupdate>`
	rec := f.do("PROPPATCH", "/a.txt", body, nil)
	require.Equal(t, 207, rec.Code)

	respBody := rec.Body.String()
	// Writable property applied, read-only refused, live remove refused.
	assert.Contains(t, respBody, "HTTP/1.1 200 OK")
	assert.Contains(t, respBody, "HTTP/1.1 403 Forbidden")

	rec = f.do("GET", "/a.txt", "", nil)
	assert.Equal(t, "Tue, 15 Nov 1994 12:45:26 GMT", rec.Header().Get("Last-Modified"))
}

func TestCopy(t *testing.T) {
	f := newFixture(t)
	f.write(t, "src.txt", "payload")

	rec := f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/dst.txt"})
	assert.Equal(t, 201, rec.Code)

	rec = f.do("GET", "/dst.txt", "", nil)
	assert.Equal(t, "payload", rec.Body.String())

	// Overwrite F against an existing destination.
	rec = f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/dst.txt", "Overwrite": "F"})
	assert.Equal(t, 412, rec.Code)

	rec = f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/dst.txt", "Overwrite": "T"})
	assert.Equal(t, 204, rec.Code)
}

func TestCopyValidation(t *testing.T) {
	f := newFixture(t)
	f.write(t, "src.txt", "x")

	rec := f.do("COPY", "/src.txt", "", nil)
	assert.Equal(t, 400, rec.Code)

	rec = f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/src.txt"})
	assert.Equal(t, 403, rec.Code)

	rec = f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/no/parent/dst.txt"})
	assert.Equal(t, 409, rec.Code)

	rec = f.do("COPY", "/missing.txt", "", map[string]string{"Destination": "/dst.txt"})
	assert.Equal(t, 404, rec.Code)

	rec = f.do("COPY", "/src.txt", "", map[string]string{"Destination": "/dst.txt", "Depth": "1"})
	assert.Equal(t, 400, rec.Code)
}

func TestCopyCollection(t *testing.T) {
	f := newFixture(t)
	f.write(t, "src/a.txt", "a")
	f.write(t, "src/sub/b.txt", "b")

	rec := f.do("COPY", "/src", "", map[string]string{"Destination": "http://example.com/dst"})
	assert.Equal(t, 201, rec.Code)

	rec = f.do("GET", "/dst/sub/b.txt", "", nil)
	assert.Equal(t, "b", rec.Body.String())
}

func TestMove(t *testing.T) {
	f := newFixture(t)
	f.write(t, "src.txt", "moving")

	rec := f.do("MOVE", "/src.txt", "", map[string]string{"Destination": "/dst.txt"})
	assert.Equal(t, 201, rec.Code)

	rec = f.do("GET", "/dst.txt", "", nil)
	assert.Equal(t, "moving", rec.Body.String())

	rec = f.do("GET", "/src.txt", "", nil)
	assert.Equal(t, 404, rec.Code)
}

func lockBody(scope string) string {
	return `<?xml version="1.0"?>
<D:lockinfo xmlns:D="DAV:">
  <D:lockscope><D:` + scope + `/></D:lockscope>
  <D:locktype><D:write/></D:locktype>
  <D:owner>tester</D:owner>
</D:lockinfo>`
}

func TestLockLifecycle(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "x")

	rec := f.do("LOCK", "/a.txt", lockBody("exclusive"), map[string]string{"Timeout": "Second-120"})
	require.Equal(t, 200, rec.Code)

	token := strings.Trim(rec.Header().Get("Lock-Token"), "<>")
	require.True(t, strings.HasPrefix(token, "urn:uuid:"))
	assert.Contains(t, rec.Body.String(), "<D:activelock>")
	assert.Contains(t, rec.Body.String(), "Second-120")

	// A conflicting grant is refused.
	rec = f.do("LOCK", "/a.txt", lockBody("exclusive"), nil)
	assert.Equal(t, 423, rec.Code)

	// Mutations without the token are blocked, with it they pass.
	rec = f.do("PUT", "/a.txt", "new", nil)
	assert.Equal(t, 423, rec.Code)

	rec = f.do("PUT", "/a.txt", "new", map[string]string{"If": "(<" + token + ">)"})
	assert.Equal(t, 204, rec.Code)

	// Refresh via body-less LOCK.
	rec = f.do("LOCK", "/a.txt", "", map[string]string{
		"If":      "(<" + token + ">)",
		"Timeout": "Second-300",
	})
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Second-300")

	// Unlock with the wrong token conflicts, with the right one works.
	rec = f.do("UNLOCK", "/a.txt", "", map[string]string{"Lock-Token": "<urn:uuid:bogus>"})
	assert.Equal(t, 409, rec.Code)

	rec = f.do("UNLOCK", "/a.txt", "", map[string]string{"Lock-Token": "<" + token + ">"})
	assert.Equal(t, 204, rec.Code)

	rec = f.do("PUT", "/a.txt", "unlocked now", nil)
	assert.Equal(t, 204, rec.Code)
}

func TestLockUnmappedURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do("LOCK", "/draft.txt", lockBody("exclusive"), nil)
	assert.Equal(t, 201, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Lock-Token"))

	// The lock-null item now exists and is empty.
	rec = f.do("GET", "/draft.txt", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestLockDepthInfinityCoversChildren(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dir/a.txt", "a")

	rec := f.do("LOCK", "/dir", lockBody("exclusive"), map[string]string{"Depth": "infinity"})
	require.Equal(t, 200, rec.Code)
	token := strings.Trim(rec.Header().Get("Lock-Token"), "<>")

	rec = f.do("PUT", "/dir/a.txt", "blocked", nil)
	assert.Equal(t, 423, rec.Code)

	rec = f.do("PUT", "/dir/a.txt", "allowed", map[string]string{"If": "(<" + token + ">)"})
	assert.Equal(t, 204, rec.Code)
}

func TestSharedLocksCoexist(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "x")

	rec := f.do("LOCK", "/a.txt", lockBody("shared"), nil)
	require.Equal(t, 200, rec.Code)

	rec = f.do("LOCK", "/a.txt", lockBody("shared"), nil)
	assert.Equal(t, 200, rec.Code)

	rec = f.do("LOCK", "/a.txt", lockBody("exclusive"), nil)
	assert.Equal(t, 423, rec.Code)
}

func TestReadOnlyMount(t *testing.T) {
	base := t.TempDir()
	s, err := disk.New(base, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("x"), 0o644))

	reg := registry.New()
	require.NoError(t, reg.AddMount(&registry.Mount{Name: "ro", Prefix: "/", Store: s, ReadOnly: true}))
	f := &fixture{handler: handlers.New(reg, nil, handlers.Config{}), base: base}

	rec := f.do("GET", "/a.txt", "", nil)
	assert.Equal(t, 200, rec.Code)

	for _, method := range []string{"PUT", "DELETE", "MKCOL", "PROPPATCH", "LOCK"} {
		rec := f.do(method, "/a.txt", "", nil)
		assert.Equal(t, 403, rec.Code, method)
	}
}

func TestDeletePartialFailureMultistatus(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dir/a.txt", "a")
	f.write(t, "dir/b.txt", "b")

	rec := f.do("LOCK", "/dir/b.txt", lockBody("exclusive"), nil)
	require.Equal(t, 200, rec.Code)

	rec = f.do("DELETE", "/dir", "", nil)
	require.Equal(t, 207, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<D:href>/dir/b.txt</D:href>")
	assert.Contains(t, body, "HTTP/1.1 423 Locked")
	assert.NotContains(t, body, "<D:href>/dir/a.txt</D:href>")

	// The unlocked sibling is gone, the locked file survives.
	rec = f.do("GET", "/dir/a.txt", "", nil)
	assert.Equal(t, 404, rec.Code)
	rec = f.do("GET", "/dir/b.txt", "", nil)
	assert.Equal(t, 200, rec.Code)
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t)
	rec := f.do("PATCH", "/", "", nil)
	assert.Equal(t, 405, rec.Code)
}
