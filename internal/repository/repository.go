package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/pool"
	"github.com/zigdocs/zigdocs/internal/resolvecache"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Repository orchestrates the build-and-cache pipeline: it answers reads from
// the store and, on a miss, dispatches background sync jobs through the
// worker pool.
type Repository struct {
	store   domain.Store
	vcs     domain.VCSClient
	builder domain.DocBuilder
	pool    *pool.Pool
	resolve *resolvecache.Cache
	logger  *utils.Logger
}

// Options contains options for creating a Repository
type Options struct {
	Store        domain.Store
	VCS          domain.VCSClient
	Builder      domain.DocBuilder
	Pool         *pool.Pool
	ResolveCache *resolvecache.Cache
	Logger       *utils.Logger
}

// New wires the orchestrator. ResolveCache may be nil.
func New(opts Options) *Repository {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Repository{
		store:   opts.Store,
		vcs:     opts.VCS,
		builder: opts.Builder,
		pool:    opts.Pool,
		resolve: opts.ResolveCache,
		logger:  logger.WithComponent("repository"),
	}
}

// DocsManifest is the central read path. A hit returns the manifest (the
// caller closes it). A miss dispatches a sync job and returns
// ErrQueuedManifestSync; a rejected duplicate (ErrJobExists) means another
// request is already handling the same fingerprint and is coalesced into the
// same queued signal.
func (r *Repository) DocsManifest(loc domain.Source) (*domain.Manifest, error) {
	m, err := r.store.OpenManifest(loc)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrStorageNotFound) {
		return nil, err
	}

	job := domain.NewJob(loc)
	if err := r.pool.AddJob(job, func() { r.runJob(job) }); err != nil {
		if errors.Is(err, domain.ErrJobExists) {
			return nil, domain.ErrQueuedManifestSync
		}
		return nil, err
	}
	return nil, domain.ErrQueuedManifestSync
}

// runJob executes a job body on a pool goroutine. Failures are logged and
// swallowed: the store stays empty for the fingerprint and the next request
// re-queues. CompleteJob runs on every terminal path.
//
// Jobs deliberately run on context.Background: in-flight clones and builds
// are not cancellable and shutdown waits for them to drain.
func (r *Repository) runJob(job *domain.Job) {
	defer r.pool.CompleteJob(job)

	logger := r.logger.WithJob(job.Fingerprint())

	var err error
	switch job.Kind {
	case domain.SyncLatest:
		err = r.syncLatest(context.Background(), job.Location)
	case domain.SyncRepository:
		err = r.syncRepository(context.Background(), job.Location)
	default:
		err = fmt.Errorf("unknown job kind %d", job.Kind)
	}
	if err != nil {
		logger.Error().Err(err).Msg("sync failed")
		return
	}
	logger.Info().Msg("sync finished")
}

// syncLatest resolves the latest sentinel to a concrete version, updates the
// latest link, and chains a SyncRepository for the resolved version.
func (r *Repository) syncLatest(ctx context.Context, loc domain.Source) error {
	version, err := r.resolveLatest(ctx, loc.Repository)
	if err != nil {
		return err
	}

	resolved := loc.WithVersion(version)
	if err := r.store.LinkLatest(resolved); err != nil {
		return err
	}

	// Skip the chained build when the resolved version is already synced.
	if m, err := r.store.OpenManifest(resolved); err == nil {
		m.Close()
		return nil
	}

	chained := domain.NewJob(resolved)
	if err := r.pool.AddJob(chained, func() { r.runJob(chained) }); err != nil {
		if errors.Is(err, domain.ErrJobExists) {
			return nil
		}
		return err
	}
	return nil
}

func (r *Repository) resolveLatest(ctx context.Context, repository string) (string, error) {
	if r.resolve != nil {
		if version, ok := r.resolve.Get(repository); ok {
			return version, nil
		}
	}

	tag, err := r.vcs.LatestTag(ctx, repository)
	if err != nil {
		return "", err
	}
	if r.resolve != nil {
		r.resolve.Set(repository, tag.Tag)
	}
	return tag.Tag, nil
}

// syncRepository clones the repository at a concrete version, builds its
// documentation, and writes the artifact into the store.
func (r *Repository) syncRepository(ctx context.Context, loc domain.Source) error {
	dir, err := os.MkdirTemp("", "zigdocs-checkout-")
	if err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := r.vcs.Clone(ctx, loc.Repository, loc.Version, dir); err != nil {
		return err
	}

	if !r.builder.HasDescriptor(dir) {
		r.logger.Info().Str("repository", loc.Repository).Str("version", loc.Version).
			Msg("no build descriptor, nothing to build")
		return nil
	}

	manifest, err := r.builder.Build(ctx, dir)
	if err != nil {
		return err
	}
	defer manifest.Close()

	return r.store.WriteManifest(loc, manifest)
}

// SyncNow builds one location synchronously on the caller's goroutine,
// bypassing the pool. Used by the CLI. The progress callback, if non-nil, is
// invoked before each phase. Returns the concrete location that was synced.
func (r *Repository) SyncNow(ctx context.Context, loc domain.Source, progress func(step string)) (domain.Source, error) {
	step := func(name string) {
		if progress != nil {
			progress(name)
		}
	}

	step("resolve")
	if loc.IsLatest() {
		version, err := r.resolveLatest(ctx, loc.Repository)
		if err != nil {
			return loc, err
		}
		resolved := loc.WithVersion(version)
		if err := r.store.LinkLatest(resolved); err != nil {
			return loc, err
		}
		loc = resolved
	}

	dir, err := os.MkdirTemp("", "zigdocs-checkout-")
	if err != nil {
		return loc, fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	step("clone")
	if err := r.vcs.Clone(ctx, loc.Repository, loc.Version, dir); err != nil {
		return loc, err
	}

	step("build")
	if !r.builder.HasDescriptor(dir) {
		return loc, fmt.Errorf("repository has no build descriptor")
	}
	manifest, err := r.builder.Build(ctx, dir)
	if err != nil {
		return loc, err
	}
	defer manifest.Close()

	step("write")
	if err := r.store.WriteManifest(loc, manifest); err != nil {
		return loc, err
	}
	return loc, nil
}

// Preload enqueues a sync for every source, typically at startup. Queued
// signals are expected; anything else is logged and skipped.
func (r *Repository) Preload(sources []domain.Source) {
	for _, src := range sources {
		m, err := r.DocsManifest(src)
		if err == nil {
			m.Close()
			continue
		}
		if !domain.IsQueued(err) {
			r.logger.Warn().Err(err).Str("source", src.String()).Msg("preload failed")
		}
	}
}
