package transcoder

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/workers"
)

// SubmitOptions carries per-job settings that are not part of the
// compression request.
type SubmitOptions struct {
	// Filename is the client's name for the source, kept for display.
	Filename string
	// RemoveSource deletes the source file once the job ends.
	RemoveSource bool
}

// Manager runs jobs in the background, bounded by a Limiter, and keeps
// their state in memory for polling.
type Manager struct {
	transcoder *Transcoder
	limiter    *workers.Limiter

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool
}

// NewManager creates a Manager.
func NewManager(t *Transcoder, limiter *workers.Limiter) *Manager {
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		transcoder: t,
		limiter:    limiter,
		ctx:        ctx,
		stop:       stop,
		jobs:       make(map[string]*Job),
	}
}

// Submit queues a job and returns its id immediately.
func (m *Manager) Submit(req planner.Request, opts SubmitOptions) (string, error) {
	job, err := m.submit(req, opts)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (m *Manager) submit(req planner.Request, opts SubmitOptions) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := newJob(m.ctx, req)
	job.Filename = opts.Filename

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.jobs[job.ID] = job
	m.wg.Add(1)
	m.mu.Unlock()

	logging.Debug("Queued job %s (%s)", job.ID, req.Mode)
	go m.run(job, opts)
	return job, nil
}

func (m *Manager) run(job *Job, opts SubmitOptions) {
	defer m.wg.Done()
	defer func() {
		if opts.RemoveSource {
			if err := os.Remove(job.Request.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.Warn("failed to remove source for job %s: %v", job.ID, err)
			}
		}
	}()

	if err := m.limiter.Acquire(job.ctx); err != nil {
		m.transcoder.abandon(job, err)
		return
	}
	defer m.limiter.Release()

	m.transcoder.execute(job)
}

// Run submits a job and waits for it. If ctx ends first the job is
// cancelled and its result is still returned.
func (m *Manager) Run(ctx context.Context, req planner.Request, opts SubmitOptions) (*Result, error) {
	job, err := m.submit(req, opts)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done():
	case <-ctx.Done():
		job.cancel()
		<-job.Done()
	}
	res := job.Result()
	return res, res.Err
}

// Wait blocks until the job ends or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*Result, error) {
	job, ok := m.job(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	select {
	case <-job.Done():
		return job.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Status, bool) {
	job, ok := m.job(id)
	if !ok {
		return Status{}, false
	}
	return job.Snapshot(), true
}

// List returns snapshots of every tracked job.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

// Cancel requests cancellation of a running or queued job.
func (m *Manager) Cancel(id string) error {
	job, ok := m.job(id)
	if !ok {
		return ErrJobNotFound
	}
	if job.Result() != nil {
		return ErrJobFinished
	}
	logging.Info("Cancelling job %s", id)
	job.cancel()
	return nil
}

func (m *Manager) job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Prune forgets jobs that finished more than maxAge ago and deletes their
// artifacts. It returns the number of jobs removed.
func (m *Manager) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*Job
	for id, job := range m.jobs {
		if job.finishedBefore(cutoff) {
			expired = append(expired, job)
			delete(m.jobs, id)
		}
	}
	m.mu.Unlock()

	for _, job := range expired {
		if res := job.Result(); res != nil && res.ArtifactPath != "" {
			if err := os.Remove(res.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.Warn("failed to remove artifact for job %s: %v", job.ID, err)
			}
		}
	}
	return len(expired)
}

// ActiveSources returns the source paths of jobs that have not finished.
func (m *Manager) ActiveSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for _, job := range m.jobs {
		if !job.State().Terminal() {
			paths = append(paths, job.Request.SourcePath)
		}
	}
	return paths
}

// GetStats implements metrics.StatsProvider.
func (m *Manager) GetStats() metrics.Stats {
	stats := metrics.Stats{ByState: make(map[string]int)}

	m.mu.RLock()
	for _, job := range m.jobs {
		stats.ByState[string(job.State())]++
	}
	m.mu.RUnlock()

	stats.Running = m.limiter.Running()
	stats.Waiting = m.limiter.Waiting()
	stats.Capacity = m.limiter.Size()
	return stats
}

// Shutdown stops accepting jobs, cancels running ones and waits for them
// to release their workspaces, or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.stop()
	m.transcoder.Cleanup()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
