package pool

import (
	"strings"
	"sync"

	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/utils"
)

// Pool is a fingerprinted job registry. A job is admitted only when no job
// with the same fingerprint is running, which makes the fingerprint the
// process-wide serialization key for builds: at most one build per
// (kind, repository, version) at any time.
//
// One mutex guards the whole registry. It is held for the entire AddJob
// critical section, spawn included, so two callers racing on one fingerprint
// cannot both succeed; it is released before the job body runs.
type Pool struct {
	logger *utils.Logger

	mu       sync.Mutex
	jobs     map[string]struct{}
	watchers map[string][]chan struct{}
	shutdown bool
	wg       sync.WaitGroup
}

// New creates an empty pool.
func New(logger *utils.Logger) *Pool {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Pool{
		logger:   logger.WithComponent("pool"),
		jobs:     map[string]struct{}{},
		watchers: map[string][]chan struct{}{},
	}
}

// AddJob admits the job and runs body on its own goroutine. Returns
// ErrPoolStopped after Deinit, ErrJobExists when a job with the same
// fingerprint is already in flight. The body must call CompleteJob exactly
// once on its terminal path.
func (p *Pool) AddJob(job *domain.Job, body func()) error {
	fp := job.Fingerprint()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return domain.ErrPoolStopped
	}
	if _, ok := p.jobs[fp]; ok {
		return domain.ErrJobExists
	}

	p.jobs[fp] = struct{}{}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Wait for AddJob to release the guard before running the body.
		p.mu.Lock()
		p.mu.Unlock()
		body()
	}()

	p.logger.Debug().Str("job", fp).Msg("job admitted")
	return nil
}

// CompleteJob deregisters the job and wakes every watcher of its
// fingerprint.
func (p *Pool) CompleteJob(job *domain.Job) {
	fp := job.Fingerprint()

	p.mu.Lock()
	delete(p.jobs, fp)
	for _, ch := range p.watchers[fp] {
		close(ch)
	}
	delete(p.watchers, fp)
	p.mu.Unlock()

	p.logger.Debug().Str("job", fp).Msg("job completed")
}

// Running reports whether a job with the fingerprint is in flight.
func (p *Pool) Running(fingerprint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.jobs[fingerprint]
	return ok
}

// Len returns the number of in-flight jobs.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Done returns a channel that is closed when the in-flight job with the
// fingerprint completes, or nil when no such job is running. The channel is
// closed on every terminal path, success or failure.
func (p *Pool) Done(fingerprint string) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.jobs[fingerprint]; !ok {
		return nil
	}
	ch := make(chan struct{})
	p.watchers[fingerprint] = append(p.watchers[fingerprint], ch)
	return ch
}

// DoneForRepository returns a completion channel for any in-flight job whose
// fingerprint names the repository, or nil when none is running. Used by
// subscribers who cannot know which concrete version a chained job carries.
func (p *Pool) DoneForRepository(repository string) <-chan struct{} {
	marker := ":" + repository + "@"

	p.mu.Lock()
	defer p.mu.Unlock()

	for fp := range p.jobs {
		if strings.Contains(fp, marker) {
			ch := make(chan struct{})
			p.watchers[fp] = append(p.watchers[fp], ch)
			return ch
		}
	}
	return nil
}

// Deinit refuses new work and blocks until every admitted job has finished.
// Idempotent; safe to call from any goroutine, but never from a signal
// handler: the caller is expected to run teardown on a regular goroutine
// after the signal context fires.
func (p *Pool) Deinit() {
	p.mu.Lock()
	first := !p.shutdown
	p.shutdown = true
	p.mu.Unlock()

	if first {
		p.logger.Info().Msg("draining worker pool")
	}
	p.wg.Wait()
}
