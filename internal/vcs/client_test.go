package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// fakeGit writes an executable script standing in for the git binary.
func fakeGit(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "git")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func noRetry() *Retrier {
	return NewRetrier(RetrierOptions{MaxRetries: 1, InitialInterval: 1, MaxInterval: 1})
}

func TestClient_Clone_RefNotFound(t *testing.T) {
	exe := fakeGit(t, `echo "fatal: Remote branch v9.9.9 not found" >&2; exit 128`)
	c := NewClient(ClientOptions{Executable: exe, Retrier: noRetry()})

	err := c.Clone(context.Background(), "github.com/a/b", "v9.9.9", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrRefNotFound)
}

func TestClient_Clone_AbnormalExit(t *testing.T) {
	exe := fakeGit(t, `echo "fatal: something else" >&2; exit 1`)
	c := NewClient(ClientOptions{Executable: exe, Retrier: noRetry()})

	err := c.Clone(context.Background(), "github.com/a/b", "v1.0.0", t.TempDir())
	require.Error(t, err)

	var execErr *domain.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "something else")
}

func TestClient_NotInstalled(t *testing.T) {
	c := NewClient(ClientOptions{
		Executable: filepath.Join(t.TempDir(), "no-such-git"),
		Retrier:    noRetry(),
	})

	err := c.Clone(context.Background(), "github.com/a/b", "v1.0.0", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrGitNotInstalled)
}

func TestClient_LatestTag(t *testing.T) {
	exe := fakeGit(t, `printf 'abc123\trefs/tags/v1.2.0\nolder\trefs/tags/v1.1.0\n'`)
	c := NewClient(ClientOptions{Executable: exe, Retrier: noRetry()})

	tag, err := c.LatestTag(context.Background(), "github.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, &domain.Tag{Tag: "v1.2.0", Commit: "abc123"}, tag)
}

func TestClient_LatestTag_FallsBackToDefaultBranch(t *testing.T) {
	// First invocation is the tag listing (empty); the second is the symref
	// query.
	exe := fakeGit(t, `
case "$*" in
*--tags*) exit 0 ;;
*--symref*) printf 'ref: refs/heads/main\tHEAD\nabc123\tHEAD\n' ;;
esac`)
	c := NewClient(ClientOptions{Executable: exe, Retrier: noRetry()})

	tag, err := c.LatestTag(context.Background(), "github.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, &domain.Tag{Tag: "main", Commit: "abc123"}, tag)
}
