package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// User-facing failure messages. Errors that fail does not map to a message of
// their own collapse into a generic 500 with a structured log entry.
const (
	msgUnsupportedHost = "The host of the remote repository is not supported"
	msgInvalidPath     = "The repository path provided is invalid"
	msgInternal        = "Internal Server Error"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, indexTemplate, nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "ok\n")
}

// handleDocs serves both shapes of documentation request: a bare repository
// path renders the module list, a module path streams one artifact file.
// A miss in either case renders the queued page with status 200.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	src, err := domain.ParseSource(strings.TrimPrefix(r.URL.Path, "/"))
	if err != nil {
		s.fail(w, err)
		return
	}

	if src.Module == "" {
		s.serveModulesList(w, src)
		return
	}
	s.serveResource(w, src)
}

func (s *Server) serveModulesList(w http.ResponseWriter, src domain.Source) {
	modules, err := s.svc.ModulesList(src)
	if err != nil {
		if domain.IsQueued(err) {
			s.renderQueued(w, src)
			return
		}
		s.fail(w, err)
		return
	}

	s.render(w, modulesTemplate, modulesPage{Source: src, Modules: modules})
}

func (s *Server) serveResource(w http.ResponseWriter, src domain.Source) {
	res, err := s.svc.DocsResource(src)
	if err != nil {
		if domain.IsQueued(err) {
			s.renderQueued(w, src)
			return
		}
		s.fail(w, err)
		return
	}
	defer res.Body.Close()

	w.Header().Set("Content-Type", res.ContentType)
	if _, err := io.Copy(w, res.Body); err != nil {
		s.logger.Debug().Err(err).Msg("response write aborted")
	}
}

func (s *Server) renderQueued(w http.ResponseWriter, src domain.Source) {
	s.render(w, queuedTemplate, queuedPage{Source: src})
}

// fail maps an error to its user-visible 500 message and logs the rest.
func (s *Server) fail(w http.ResponseWriter, err error) {
	msg := msgInternal
	switch {
	case errors.Is(err, domain.ErrUnsupportedHost):
		msg = msgUnsupportedHost
	case errors.Is(err, domain.ErrInvalidPath):
		msg = msgInvalidPath
	case errors.Is(err, domain.ErrModuleNotFound):
		msg = "The requested module has not been synced for this version"
	case errors.Is(err, domain.ErrUnrecognizedFileExtension):
		msg = "The requested file has an unrecognized extension"
	default:
		s.logger.Error().Err(err).Msg("request failed")
	}
	http.Error(w, msg, http.StatusInternalServerError)
}
