package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Ensure Client implements domain.VCSClient
var _ domain.VCSClient = (*Client)(nil)

// Client invokes the external git binary. No VCS protocol is spoken
// in-process; the binary is the capability.
type Client struct {
	exe     string
	logger  *utils.Logger
	retrier *Retrier
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Executable string
	Logger     *utils.Logger
	Retrier    *Retrier
}

// NewClient creates a git client around the given executable.
func NewClient(opts ClientOptions) *Client {
	exe := opts.Executable
	if exe == "" {
		exe = "git"
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	retrier := opts.Retrier
	if retrier == nil {
		retrier = NewRetrier(DefaultRetrierOptions())
	}
	return &Client{exe: exe, logger: logger.WithComponent("vcs"), retrier: retrier}
}

// Clone performs a shallow clone of the repository at ref into dir.
// Exit code 128 means the repository or ref does not exist.
func (c *Client) Clone(ctx context.Context, repository, ref, dir string) error {
	c.logger.Info().Str("repository", repository).Str("ref", ref).Msg("cloning repository")
	url := "https://" + repository
	_, err := c.run(ctx, dir, "clone", "--depth=1", "--branch", ref, url, ".")
	return err
}

// LatestTag asks the remote for its tags, newest version first, and returns
// the first one that looks like a version (leading 'v' or digit). When no tag
// qualifies it falls back to the default branch.
func (c *Client) LatestTag(ctx context.Context, repository string) (*domain.Tag, error) {
	url := "https://" + repository
	out, err := c.runRetry(ctx, "-c", "versionsort.suffix=-", "ls-remote", "--tags", "--sort=-v:refname", url)
	if err != nil {
		return nil, err
	}

	if tag := ParseLatestTag(out); tag != nil {
		c.logger.Debug().Str("repository", repository).Str("tag", tag.Tag).Msg("resolved latest tag")
		return tag, nil
	}

	c.logger.Debug().Str("repository", repository).Msg("no version tag, falling back to default branch")
	branch, commit, err := c.DefaultBranch(ctx, repository)
	if err != nil {
		return nil, err
	}
	return &domain.Tag{Tag: branch, Commit: commit}, nil
}

// DefaultBranch resolves the remote HEAD symref to a branch name and commit.
func (c *Client) DefaultBranch(ctx context.Context, repository string) (string, string, error) {
	url := "https://" + repository
	out, err := c.runRetry(ctx, "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return "", "", err
	}
	return ParseSymref(out)
}

// runRetry runs a network-facing git command, retrying transient failures
// with exponential backoff.
func (c *Client) runRetry(ctx context.Context, args ...string) (string, error) {
	return RetryWithValue(ctx, c.retrier, func() (string, error) {
		return c.run(ctx, "", args...)
	})
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.exe, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrGitNotInstalled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := lastLine(stderr.String())
		if exitErr.ExitCode() == 128 {
			return "", fmt.Errorf("%w: %s", domain.ErrRefNotFound, msg)
		}
		return "", domain.NewExecError(c.exe, exitErr.ExitCode(), msg)
	}

	return "", fmt.Errorf("running %s: %w", c.exe, err)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
