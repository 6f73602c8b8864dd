package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigdocs/zigdocs/internal/domain"
)

func newTestStore(t *testing.T) *LocalDir {
	t.Helper()
	s, err := NewLocalDir(LocalDirOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustParse(t *testing.T, path string) domain.Source {
	t.Helper()
	src, err := domain.ParseSource(path)
	require.NoError(t, err)
	return src
}

// buildManifest materializes module trees on disk and wraps them in a
// manifest, the way the doc builder produces one.
func buildManifest(t *testing.T, modules map[string]map[string]string) *domain.Manifest {
	t.Helper()
	base := t.TempDir()
	m := domain.NewManifest()
	t.Cleanup(func() { m.Close() })

	for name, files := range modules {
		dir := filepath.Join(base, name)
		require.NoError(t, os.Mkdir(dir, 0755))
		for rel, content := range files {
			path := filepath.Join(dir, filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		}
		root, err := os.OpenRoot(dir)
		require.NoError(t, err)
		m.Add(name, root)
	}
	return m
}

func TestLocalDir_OpenManifest_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.OpenManifest(mustParse(t, "github.com/a/b@v1.0.0"))
	assert.ErrorIs(t, err, domain.ErrStorageNotFound)
}

func TestLocalDir_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	loc := mustParse(t, "github.com/a/b@v1.0.0")

	written := buildManifest(t, map[string]map[string]string{
		"core": {"index.html": "<html>core</html>", "assets/app.js": "js"},
		"util": {"index.html": "<html>util</html>"},
	})
	require.NoError(t, s.WriteManifest(loc, written))

	m, err := s.OpenManifest(loc)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, written.Modules(), m.Modules())

	core, ok := m.Module("core")
	require.True(t, ok)
	data, err := core.ReadFile("index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>core</html>", string(data))

	nested, err := core.ReadFile(filepath.Join("assets", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "js", string(nested))
}

func TestLocalDir_WriteManifest_ReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	loc := mustParse(t, "github.com/a/b@v1.0.0")

	first := buildManifest(t, map[string]map[string]string{
		"old": {"index.html": "old"},
	})
	require.NoError(t, s.WriteManifest(loc, first))

	second := buildManifest(t, map[string]map[string]string{
		"new": {"index.html": "new"},
	})
	require.NoError(t, s.WriteManifest(loc, second))

	m, err := s.OpenManifest(loc)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"new"}, m.Modules(), "stale modules must not survive a rewrite")
}

func TestLocalDir_OpenManifest_EmptyDirIsMiss(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalDir(LocalDirOptions{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	// The window between linkLatest and the artifact write: the version
	// directory exists but holds nothing.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "github.com/a/b/v1.0.0"), 0755))

	_, err = s.OpenManifest(mustParse(t, "github.com/a/b@v1.0.0"))
	assert.ErrorIs(t, err, domain.ErrStorageNotFound)
}

func TestLocalDir_LinkLatest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalDir(LocalDirOptions{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	loc := mustParse(t, "github.com/a/b@v2.1")
	require.NoError(t, s.LinkLatest(loc))

	target, err := os.Readlink(filepath.Join(dir, "github.com/a/b/latest"))
	require.NoError(t, err)
	assert.Equal(t, "v2.1", target)

	info, err := os.Stat(filepath.Join(dir, "github.com/a/b", target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Repointing replaces the existing link with one to the new version.
	require.NoError(t, s.LinkLatest(loc.WithVersion("v3.0")))
	target, err = os.Readlink(filepath.Join(dir, "github.com/a/b/latest"))
	require.NoError(t, err)
	assert.Equal(t, "v3.0", target)
}

func TestLocalDir_LatestResolvesThroughLink(t *testing.T) {
	s := newTestStore(t)
	concrete := mustParse(t, "github.com/a/b@v1.0.0")

	m := buildManifest(t, map[string]map[string]string{
		"core": {"index.html": "hello"},
	})
	require.NoError(t, s.WriteManifest(concrete, m))
	require.NoError(t, s.LinkLatest(concrete))

	viaLatest, err := s.OpenManifest(mustParse(t, "github.com/a/b"))
	require.NoError(t, err)
	defer viaLatest.Close()

	assert.Equal(t, []string{"core"}, viaLatest.Modules())
}

func TestLocalDir_RejectsUnsafeLocations(t *testing.T) {
	s := newTestStore(t)

	unsafe := []domain.Source{
		{Repository: "github.com/a/b", Version: "../v1"},
		{Repository: "/github.com/a/b", Version: "v1"},
		{Repository: "github.com/a", Version: "v1"},
		{Repository: "github.com/a/b", Version: "v1/extra"},
	}

	for _, loc := range unsafe {
		_, err := s.OpenManifest(loc)
		assert.ErrorIs(t, err, domain.ErrInvalidStoragePath, "%+v", loc)
		assert.ErrorIs(t, s.LinkLatest(loc), domain.ErrInvalidStoragePath, "%+v", loc)
	}
}
