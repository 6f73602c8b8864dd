package docbuilder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// fakeZig writes an executable script standing in for the zig binary.
func fakeZig(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zig")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestBuilder_Build(t *testing.T) {
	// The fake generator produces two module trees under zig-out/zigdocs.
	exe := fakeZig(t, `
case "$1" in
build)
    mkdir -p zig-out/zigdocs/core zig-out/zigdocs/util
    echo "<html>core</html>" > zig-out/zigdocs/core/index.html
    echo "<html>util</html>" > zig-out/zigdocs/util/index.html
    ;;
esac`)

	workdir := t.TempDir()
	b := NewBuilder(BuilderOptions{Executable: exe})

	m, err := b.Build(context.Background(), workdir)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"core", "util"}, m.Modules())

	// The embedded descriptor must have been written into the tree.
	_, err = os.Stat(filepath.Join(workdir, "zigdocs.build.zig"))
	assert.NoError(t, err)
}

func TestBuilder_Build_AbnormalExit(t *testing.T) {
	exe := fakeZig(t, `echo "error: FileNotFound" >&2; exit 1`)
	b := NewBuilder(BuilderOptions{Executable: exe})

	_, err := b.Build(context.Background(), t.TempDir())
	require.Error(t, err)

	var execErr *domain.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
}

func TestBuilder_Build_NotInstalled(t *testing.T) {
	b := NewBuilder(BuilderOptions{Executable: filepath.Join(t.TempDir(), "no-such-zig")})

	_, err := b.Build(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrZigNotInstalled)
}

func TestBuilder_Build_FetchFailureIsNonFatal(t *testing.T) {
	// fetch fails; build still runs and produces output.
	exe := fakeZig(t, `
case "$1" in
fetch) echo "error: fetch failed" >&2; exit 1 ;;
build) mkdir -p zig-out/zigdocs/core; echo ok > zig-out/zigdocs/core/index.html ;;
esac`)

	workdir := t.TempDir()
	zon := `.{ .dependencies = .{ .dep = .{ .url = "https://example.com/dep.tar.gz#frag" } } }`
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "build.zig.zon"), []byte(zon), 0644))

	b := NewBuilder(BuilderOptions{Executable: exe})
	m, err := b.Build(context.Background(), workdir)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"core"}, m.Modules())
}

func TestBuilder_CacheDirEnv(t *testing.T) {
	// The generator sees the configured cache dir in both env variables.
	exe := fakeZig(t, `
mkdir -p zig-out/zigdocs/core
printf '%s\n%s\n' "$ZIG_GLOBAL_CACHE_DIR" "$ZIG_CACHE_DIR" > zig-out/zigdocs/core/env.md`)

	workdir := t.TempDir()
	b := NewBuilder(BuilderOptions{Executable: exe, CacheDir: "/tmp/zig-cache"})

	m, err := b.Build(context.Background(), workdir)
	require.NoError(t, err)
	defer m.Close()

	core, ok := m.Module("core")
	require.True(t, ok)
	data, err := core.ReadFile("env.md")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/zig-cache\n/tmp/zig-cache\n", string(data))
}
