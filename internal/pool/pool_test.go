package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zigdocs/zigdocs/internal/domain"
)

func testJob(t *testing.T, path string) *domain.Job {
	t.Helper()
	src, err := domain.ParseSource(path)
	require.NoError(t, err)
	return domain.NewJob(src)
}

func TestPool_AddJob_DeduplicatesByFingerprint(t *testing.T) {
	p := New(nil)
	job := testJob(t, "github.com/a/b")

	release := make(chan struct{})
	err := p.AddJob(job, func() {
		<-release
		p.CompleteJob(job)
	})
	require.NoError(t, err)

	dup := testJob(t, "github.com/a/b")
	assert.ErrorIs(t, p.AddJob(dup, func() { p.CompleteJob(dup) }), domain.ErrJobExists)

	// A different fingerprint is independent.
	other := testJob(t, "github.com/a/b@v1.0.0")
	require.NoError(t, p.AddJob(other, func() { p.CompleteJob(other) }))

	assert.True(t, p.Running(job.Fingerprint()))
	close(release)
	p.Deinit()
	assert.Equal(t, 0, p.Len())
}

// TestPool_ConcurrentAddJob asserts that for any number of racing AddJob
// calls with equal fingerprints, exactly one wins.
func TestPool_ConcurrentAddJob(t *testing.T) {
	p := New(nil)

	const racers = 32
	release := make(chan struct{})

	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := testJob(t, "github.com/a/b")
			err := p.AddJob(job, func() {
				<-release
				p.CompleteJob(job)
			})
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, domain.ErrJobExists):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, int32(racers-1), rejected.Load())
	assert.Equal(t, 1, p.Len())

	close(release)
	p.Deinit()
}

// TestPool_DeinitJoinsAllJobs asserts that Deinit returns only after every
// admitted job has terminated.
func TestPool_DeinitJoinsAllJobs(t *testing.T) {
	p := New(nil)

	var finished atomic.Int32
	for _, path := range []string{"github.com/a/b", "github.com/a/c", "github.com/a/d@v1"} {
		job := testJob(t, path)
		require.NoError(t, p.AddJob(job, func() {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			p.CompleteJob(job)
		}))
	}

	p.Deinit()
	assert.Equal(t, int32(3), finished.Load())

	// Idempotent: a second call returns immediately.
	p.Deinit()

	// Once stopped, no new work is admitted.
	job := testJob(t, "github.com/x/y")
	assert.ErrorIs(t, p.AddJob(job, func() {}), domain.ErrPoolStopped)
}

func TestPool_DoneNotification(t *testing.T) {
	p := New(nil)
	job := testJob(t, "github.com/a/b")

	release := make(chan struct{})
	require.NoError(t, p.AddJob(job, func() {
		<-release
		p.CompleteJob(job)
	}))

	done := p.Done(job.Fingerprint())
	require.NotNil(t, done)

	select {
	case <-done:
		t.Fatal("notified before completion")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion never notified")
	}

	assert.Nil(t, p.Done(job.Fingerprint()), "no channel for an idle fingerprint")
	p.Deinit()
}

func TestPool_DoneForRepository(t *testing.T) {
	p := New(nil)
	job := testJob(t, "github.com/a/b")

	release := make(chan struct{})
	require.NoError(t, p.AddJob(job, func() {
		<-release
		p.CompleteJob(job)
	}))

	// The caller knows the repository but not which kind or version is in
	// flight.
	done := p.DoneForRepository("github.com/a/b")
	require.NotNil(t, done)
	assert.Nil(t, p.DoneForRepository("github.com/other/repo"))

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion never notified")
	}
	p.Deinit()
}
