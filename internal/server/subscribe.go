package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/zigdocs/zigdocs/internal/domain"
)

// maxSubscribeRounds bounds how many job completions one subscriber will
// follow. A latest request chains two jobs; anything past a few rounds means
// builds are failing and re-queueing, and the client should give up.
const maxSubscribeRounds = 8

// handleSubscribe is the readiness stream: it emits a single "ready" event
// once modules for the location become available, or closes silently when no
// build is in flight anymore. Readiness is signalled by the worker pool's
// completion notifications; the manifest is only re-read when a job actually
// finished.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	src, err := domain.ParseSource(strings.TrimPrefix(r.URL.Path, "/subscribe/"))
	if err != nil {
		s.fail(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for range maxSubscribeRounds {
		if s.manifestReady(src) {
			io.WriteString(w, "event: ready\ndata:{}\n\n")
			flusher.Flush()
			return
		}

		done := s.pool.DoneForRepository(src.Repository)
		if done == nil {
			// Nothing in flight: the build either failed or was never
			// dispatched. Close and let the client re-request.
			return
		}

		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
	}
}

// manifestReady probes the store without dispatching a sync.
func (s *Server) manifestReady(src domain.Source) bool {
	m, err := s.store.OpenManifest(src)
	if err != nil {
		return false
	}
	m.Close()
	return true
}
