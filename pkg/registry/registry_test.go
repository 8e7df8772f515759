package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/registry"
	"github.com/mschuler/nwebdav/pkg/store/disk"
)

func newStore(t *testing.T) *disk.Store {
	t.Helper()
	s, err := disk.New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestAddMountValidation(t *testing.T) {
	r := registry.New()
	s := newStore(t)

	require.NoError(t, r.AddMount(&registry.Mount{Name: "root", Prefix: "/", Store: s}))

	err := r.AddMount(&registry.Mount{Name: "root", Prefix: "/other", Store: s})
	assert.ErrorContains(t, err, "already registered")

	err = r.AddMount(&registry.Mount{Name: "dup", Prefix: "/", Store: s})
	assert.ErrorContains(t, err, "already served")

	err = r.AddMount(&registry.Mount{Name: "nostore", Prefix: "/x"})
	assert.Error(t, err)

	// Prefixes normalize before collision checking.
	err = r.AddMount(&registry.Mount{Name: "slashy", Prefix: "///"})
	assert.Error(t, err)
}

func TestResolveLongestPrefix(t *testing.T) {
	r := registry.New()
	root := newStore(t)
	docs := newStore(t)

	require.NoError(t, r.AddMount(&registry.Mount{Name: "root", Prefix: "/", Store: root}))
	require.NoError(t, r.AddMount(&registry.Mount{Name: "docs", Prefix: "/docs", Store: docs}))

	m, rel, err := r.Resolve("/docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs", m.Name)
	assert.Equal(t, "/report.txt", rel)

	m, rel, err = r.Resolve("/docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", m.Name)
	assert.Equal(t, "/", rel)

	m, rel, err = r.Resolve("/other/file")
	require.NoError(t, err)
	assert.Equal(t, "root", m.Name)
	assert.Equal(t, "/other/file", rel)

	// Prefixes match whole segments, not string prefixes.
	m, _, err = r.Resolve("/docsarchive/file")
	require.NoError(t, err)
	assert.Equal(t, "root", m.Name)
}

func TestResolveNoMount(t *testing.T) {
	r := registry.New()
	s := newStore(t)
	require.NoError(t, r.AddMount(&registry.Mount{Name: "docs", Prefix: "/docs", Store: s}))

	_, _, err := r.Resolve("/elsewhere")
	assert.Error(t, err)
}

func TestResolveNormalizesPath(t *testing.T) {
	r := registry.New()
	s := newStore(t)
	require.NoError(t, r.AddMount(&registry.Mount{Name: "docs", Prefix: "/docs/", Store: s}))

	m, rel, err := r.Resolve("/docs/../docs/./a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs", m.Name)
	assert.Equal(t, "/a.txt", rel)
}
