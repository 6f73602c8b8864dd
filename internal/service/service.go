package service

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/repository"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// contentTypes maps artifact file extensions to the content type they are
// served with. Anything else is refused.
var contentTypes = map[string]string{
	"html": "text/html",
	"md":   "text/markdown",
	"wasm": "application/wasm",
	"js":   "application/javascript",
	"css":  "text/css",
	"tar":  "application/x-tar",
}

// Resource is an opened artifact file paired with its content type. The
// caller closes Body.
type Resource struct {
	Body        io.ReadCloser
	ContentType string
}

// Service is the thin read facade the HTTP layer talks to.
type Service struct {
	repo   *repository.Repository
	logger *utils.Logger
}

// New creates a service over the repository.
func New(repo *repository.Repository, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Service{repo: repo, logger: logger.WithComponent("service")}
}

// ModulesList returns the sorted module names synced for the location, or
// ErrQueuedManifestSync when a build is now in progress.
func (s *Service) ModulesList(loc domain.Source) ([]string, error) {
	m, err := s.repo.DocsManifest(loc)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.Modules(), nil
}

// DocsResource opens one artifact file for the location. The content type is
// derived from the file extension before any I/O happens, so an unsupported
// extension is refused even on a warm cache.
func (s *Service) DocsResource(loc domain.Source) (*Resource, error) {
	contentType, err := ContentTypeFor(loc.File)
	if err != nil {
		return nil, err
	}

	m, err := s.repo.DocsManifest(loc)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	moduleRoot, ok := m.Module(loc.Module)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, loc.Module)
	}

	f, err := moduleRoot.Open(filepath.FromSlash(loc.File))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrStorageNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}

	return &Resource{Body: f, ContentType: contentType}, nil
}

// ContentTypeFor maps a file name to the content type it is served with.
func ContentTypeFor(file string) (string, error) {
	ext := path.Ext(file)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrUnrecognizedFileExtension, file)
	}
	contentType, ok := contentTypes[ext[1:]]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnrecognizedFileExtension, file)
	}
	return contentType, nil
}
