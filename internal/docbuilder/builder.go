package docbuilder

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Ensure Builder implements domain.DocBuilder
var _ domain.DocBuilder = (*Builder)(nil)

// buildDescriptor is written into every working tree before the generator
// runs, overwriting any file of the same name.
//
//go:embed zigdocs.build.zig
var buildDescriptor []byte

const (
	descriptorName = "zigdocs.build.zig"
	manifestName   = "build.zig.zon"
	projectBuild   = "build.zig"
	outputSubdir   = "zig-out/zigdocs"
	buildStep      = "zigdocs"
)

// Builder invokes the external documentation generator in a cloned working
// tree.
type Builder struct {
	exe      string
	cacheDir string
	logger   *utils.Logger
}

// BuilderOptions contains options for creating a Builder
type BuilderOptions struct {
	Executable string
	CacheDir   string
	Logger     *utils.Logger
}

// NewBuilder creates a doc builder around the given executable.
func NewBuilder(opts BuilderOptions) *Builder {
	exe := opts.Executable
	if exe == "" {
		exe = "zig"
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Builder{exe: exe, cacheDir: opts.CacheDir, logger: logger.WithComponent("docbuilder")}
}

// HasDescriptor reports whether the working tree carries a build descriptor
// at its root. Without one there is nothing to build.
func (b *Builder) HasDescriptor(workdir string) bool {
	_, err := os.Stat(filepath.Join(workdir, projectBuild))
	return err == nil
}

// Build fetches the working tree's declared dependencies, writes the embedded
// build descriptor, runs the generator, and returns a manifest of the module
// directories produced under zig-out/zigdocs/.
func (b *Builder) Build(ctx context.Context, workdir string) (*domain.Manifest, error) {
	b.fetchDependencies(ctx, workdir)

	if err := os.WriteFile(filepath.Join(workdir, descriptorName), buildDescriptor, 0644); err != nil {
		return nil, fmt.Errorf("writing build descriptor: %w", err)
	}

	if err := b.run(ctx, workdir, "build", "--build-file", descriptorName, buildStep); err != nil {
		return nil, err
	}

	return b.collect(workdir)
}

// fetchDependencies resolves the dependency URLs named in the repository's
// manifest descriptor. Failures here are logged and skipped: the build step
// decides whether a missing dependency is fatal.
func (b *Builder) fetchDependencies(ctx context.Context, workdir string) {
	urls, err := DependencyURLs(filepath.Join(workdir, manifestName))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn().Err(err).Msg("could not read dependency manifest")
		}
		return
	}

	for _, url := range urls {
		url, _, _ = strings.Cut(url, "#")
		if url == "" {
			continue
		}
		if err := b.run(ctx, workdir, "fetch", url); err != nil {
			b.logger.Warn().Err(err).Str("url", url).Msg("dependency fetch failed")
		}
	}
}

// collect assembles a manifest from the generator's output tree.
func (b *Builder) collect(workdir string) (*domain.Manifest, error) {
	out, err := os.OpenRoot(filepath.Join(workdir, filepath.FromSlash(outputSubdir)))
	if err != nil {
		return nil, fmt.Errorf("opening generator output: %w", err)
	}
	defer out.Close()

	f, err := out.Open(".")
	if err != nil {
		return nil, fmt.Errorf("reading generator output: %w", err)
	}
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("reading generator output: %w", err)
	}

	manifest := domain.NewManifest()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub, err := out.OpenRoot(entry.Name())
		if err != nil {
			manifest.Close()
			return nil, fmt.Errorf("opening module %s: %w", entry.Name(), err)
		}
		manifest.Add(entry.Name(), sub)
	}
	return manifest, nil
}

func (b *Builder) run(ctx context.Context, workdir string, args ...string) error {
	cmd := exec.CommandContext(ctx, b.exe, args...)
	cmd.Dir = workdir
	cmd.Env = b.env()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return domain.ErrZigNotInstalled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return domain.NewExecError(b.exe, exitErr.ExitCode(), lastLine(stderr.String()))
	}

	return fmt.Errorf("running %s: %w", b.exe, err)
}

func (b *Builder) env() []string {
	env := os.Environ()
	if b.cacheDir != "" {
		env = append(env,
			"ZIG_GLOBAL_CACHE_DIR="+b.cacheDir,
			"ZIG_CACHE_DIR="+b.cacheDir,
		)
	}
	return env
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
