package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Ensure LocalDir implements domain.Store
var _ domain.Store = (*LocalDir)(nil)

// LocalDir is a filesystem-rooted artifact store. The directory layout is the
// cache key:
//
//	<root>/<repository>/<version>/<module>/<files>
//	<root>/<repository>/latest -> <version>
//
// The store assumes sole-process ownership of its root; serialization of
// writers for one (repository, version) is the worker pool's job.
type LocalDir struct {
	root   *os.Root
	logger *utils.Logger
}

// LocalDirOptions contains options for creating a LocalDir store
type LocalDirOptions struct {
	Path   string
	Logger *utils.Logger
}

// NewLocalDir opens (creating if needed) a store rooted at opts.Path.
func NewLocalDir(opts LocalDirOptions) (*LocalDir, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: empty store path", domain.ErrInvalidStoragePath)
	}
	if err := os.MkdirAll(opts.Path, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	root, err := os.OpenRoot(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LocalDir{root: root, logger: logger.WithComponent("store")}, nil
}

// Close releases the root directory handle.
func (s *LocalDir) Close() error {
	return s.root.Close()
}

// OpenManifest opens <root>/<repository>/<version>/ and assembles a manifest
// from its immediate subdirectories. An absent or empty version directory is
// reported as ErrStorageNotFound; an empty directory is what a reader sees
// between linkLatest and the artifact write, and it must re-queue, not render
// nothing.
func (s *LocalDir) OpenManifest(loc domain.Source) (*domain.Manifest, error) {
	if err := checkLocation(loc); err != nil {
		return nil, err
	}

	dir, err := s.root.OpenRoot(filepath.Join(loc.Repository, loc.Version))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrStorageNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	defer dir.Close()

	f, err := dir.Open(".")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}

	manifest := domain.NewManifest()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub, err := dir.OpenRoot(entry.Name())
		if err != nil {
			manifest.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
		}
		manifest.Add(entry.Name(), sub)
	}

	if manifest.Len() == 0 {
		manifest.Close()
		return nil, domain.ErrStorageNotFound
	}
	return manifest, nil
}

// WriteManifest copies every module tree of m into the store. The copy lands
// in a sibling temp directory first and is renamed into place, so a crash
// mid-write never leaves a partial artifact visible to readers.
func (s *LocalDir) WriteManifest(loc domain.Source, m *domain.Manifest) error {
	if err := checkLocation(loc); err != nil {
		return err
	}
	for _, mod := range m.Entries() {
		if !utils.SafeRelPath(mod.Name) || strings.Contains(mod.Name, "/") {
			return fmt.Errorf("%w: module %q", domain.ErrInvalidStoragePath, mod.Name)
		}
	}

	tmp := filepath.Join(loc.Repository, ".tmp-"+loc.Version)
	final := filepath.Join(loc.Repository, loc.Version)

	_ = s.root.RemoveAll(tmp)
	if err := s.copyManifest(tmp, m); err != nil {
		// Retry once after recreating the target directory.
		s.logger.Warn().Err(err).Str("repository", loc.Repository).Msg("manifest copy failed, retrying")
		_ = s.root.RemoveAll(tmp)
		if err := s.root.MkdirAll(tmp, 0755); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
		}
		if err := s.copyManifest(tmp, m); err != nil {
			_ = s.root.RemoveAll(tmp)
			return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
		}
	}

	if err := s.root.RemoveAll(final); err != nil {
		_ = s.root.RemoveAll(tmp)
		return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	if err := s.root.Rename(tmp, final); err != nil {
		_ = s.root.RemoveAll(tmp)
		return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	s.logger.Info().
		Str("repository", loc.Repository).
		Str("version", loc.Version).
		Int("modules", m.Len()).
		Msg("manifest written")
	return nil
}

func (s *LocalDir) copyManifest(dst string, m *domain.Manifest) error {
	if err := s.root.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, mod := range m.Entries() {
		if err := s.copyTree(filepath.Join(dst, mod.Name), mod.Root); err != nil {
			return err
		}
	}
	return nil
}

// copyTree copies every regular file under src into dst, preserving relative
// paths. Non-regular entries are skipped.
func (s *LocalDir) copyTree(dst string, src *os.Root) error {
	if err := s.root.MkdirAll(dst, 0755); err != nil {
		return err
	}
	return fs.WalkDir(src.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		target := filepath.Join(dst, filepath.FromSlash(p))
		if d.IsDir() {
			return s.root.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return s.copyFile(target, src, p)
	})
}

func (s *LocalDir) copyFile(dst string, src *os.Root, name string) error {
	in, err := src.Open(name)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.root.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// LinkLatest replaces <repository>/latest with a relative symlink to
// loc.Version, creating the version directory if absent. The replacement is
// unlink-then-symlink, so the link is briefly absent between the two steps;
// concurrent callers for one repository are already serialized by the
// worker-pool fingerprint.
func (s *LocalDir) LinkLatest(loc domain.Source) error {
	if err := checkLocation(loc); err != nil {
		return err
	}

	if err := s.root.MkdirAll(filepath.Join(loc.Repository, loc.Version), 0755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	link := filepath.Join(loc.Repository, domain.VersionLatest)
	if err := s.root.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	if err := s.root.Symlink(loc.Version, link); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	s.logger.Info().
		Str("repository", loc.Repository).
		Str("version", loc.Version).
		Msg("latest link updated")
	return nil
}

// checkLocation rejects path components the parser should never have let
// through; the store joins these straight into its root.
func checkLocation(loc domain.Source) error {
	if !utils.SafeRelPath(loc.Repository) || strings.Count(loc.Repository, "/") != 2 {
		return fmt.Errorf("%w: repository %q", domain.ErrInvalidStoragePath, loc.Repository)
	}
	if !utils.SafeRelPath(loc.Version) || strings.Contains(loc.Version, "/") {
		return fmt.Errorf("%w: version %q", domain.ErrInvalidStoragePath, loc.Version)
	}
	return nil
}
