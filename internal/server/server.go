package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/zigdocs/zigdocs/internal/config"
	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/pool"
	"github.com/zigdocs/zigdocs/internal/service"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Server owns the HTTP surface. Requests are synchronous; build jobs never
// run on a request goroutine.
type Server struct {
	cfg    *config.Config
	svc    *service.Service
	store  domain.Store
	pool   *pool.Pool
	logger *utils.Logger

	sem        *semaphore.Weighted
	httpServer *http.Server
}

// Options contains options for creating a Server
type Options struct {
	Config  *config.Config
	Service *service.Service
	Store   domain.Store
	Pool    *pool.Pool
	Logger  *utils.Logger
}

// New creates a server around the read facade.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Server{
		cfg:    opts.Config,
		svc:    opts.Service,
		store:  opts.Store,
		pool:   opts.Pool,
		logger: logger.WithComponent("server"),
		sem:    semaphore.NewWeighted(int64(opts.Config.HTTPWorkers)),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// requests get a drain window; build jobs are the pool's problem, not ours.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler assembles the route table. The mux itself is plain net/http; the
// interesting behavior lives behind it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /subscribe/", s.handleSubscribe)
	mux.HandleFunc("GET /", s.handleDocs)
	return s.limitConcurrency(mux)
}

// limitConcurrency bounds the number of requests served at once to the
// configured http_workers.
func (s *Server) limitConcurrency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.sem.Acquire(r.Context(), 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		next.ServeHTTP(w, r)
	})
}
