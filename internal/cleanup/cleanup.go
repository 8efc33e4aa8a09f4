// Package cleanup periodically removes files and records that outlive
// their usefulness: orphaned job workspaces, expired artifacts, stale
// uploads, finished jobs and old quota rows.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
)

// DefaultSchedule runs a sweep every 15 minutes.
const DefaultSchedule = "@every 15m"

// JobPruner forgets finished jobs older than maxAge. ActiveSources lists
// the source files of jobs that have not finished; sweeps never remove them.
type JobPruner interface {
	Prune(maxAge time.Duration) int
	ActiveSources() []string
}

// UsagePurger deletes expired quota rows.
type UsagePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Config selects what a sweep touches.
type Config struct {
	WorkDir   string
	OutputDir string
	UploadDir string

	// WorkspacePrefix identifies job workspaces inside WorkDir.
	WorkspacePrefix string
	// WorkspaceMaxAge should exceed the job deadline so live workspaces
	// are never touched.
	WorkspaceMaxAge time.Duration
	// Retention applies to artifacts, uploads and finished jobs.
	Retention time.Duration
	Schedule  string
}

// Report counts what one sweep removed.
type Report struct {
	Workspaces int
	Outputs    int
	Uploads    int
	Jobs       int
	UsageRows  int64
}

func (r Report) String() string {
	return fmt.Sprintf("workspaces=%d outputs=%d uploads=%d jobs=%d usage=%d",
		r.Workspaces, r.Outputs, r.Uploads, r.Jobs, r.UsageRows)
}

// Service runs sweeps on a cron schedule.
type Service struct {
	cfg   Config
	jobs  JobPruner
	usage UsagePurger
	now   func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

// New validates the schedule and returns an unstarted Service. jobs and
// usage may be nil.
func New(cfg Config, jobs JobPruner, usage UsagePurger) (*Service, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.WorkspacePrefix == "" {
		cfg.WorkspacePrefix = "job-"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &Service{cfg: cfg, jobs: jobs, usage: usage, now: time.Now}, nil
}

// Start schedules sweeps. Overlapping runs are skipped.
func (s *Service) Start() error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	logging.Info("Cleanup scheduled %s (retention %v)", s.cfg.Schedule, s.cfg.Retention)
	return nil
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (s *Service) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RemoveOrphanedWorkspaces deletes every job workspace regardless of age.
// Call it only before any job has started.
func (s *Service) RemoveOrphanedWorkspaces() int {
	n := s.removeEntries(s.cfg.WorkDir, s.cfg.WorkspacePrefix, 0, "workspace")
	if n > 0 {
		logging.Warn("Removed %d orphaned job workspaces from %s", n, s.cfg.WorkDir)
	}
	return n
}

// RunOnce performs one sweep.
func (s *Service) RunOnce(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r Report
	if s.cfg.WorkspaceMaxAge > 0 {
		r.Workspaces = s.removeEntries(s.cfg.WorkDir, s.cfg.WorkspacePrefix, s.cfg.WorkspaceMaxAge, "workspace")
	}
	if s.jobs != nil {
		r.Jobs = s.jobs.Prune(s.cfg.Retention)
		metrics.CleanupRemovedTotal.WithLabelValues("job").Add(float64(r.Jobs))
	}
	// Pruned jobs take their artifacts with them; this catches the rest.
	r.Outputs = s.removeEntries(s.cfg.OutputDir, "", s.cfg.Retention, "output")
	r.Uploads = s.removeEntries(s.cfg.UploadDir, "", s.cfg.Retention, "upload", s.activeSources()...)

	if s.usage != nil {
		n, err := s.usage.Purge(ctx)
		if err != nil {
			logging.Error("Quota purge failed: %v", err)
		}
		r.UsageRows = n
	}

	metrics.CleanupLastRunTimestamp.Set(float64(s.now().Unix()))
	logging.Debug("Cleanup sweep: %s", r)
	return r
}

// activeSources returns the absolute paths of sources still in use.
func (s *Service) activeSources() []string {
	if s.jobs == nil {
		return nil
	}
	paths := s.jobs.ActiveSources()
	for i, p := range paths {
		paths[i] = absPath(p)
	}
	return paths
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// removeEntries deletes entries in dir whose name has prefix and whose
// modification time is older than maxAge (0 = any age). Paths in keep are
// skipped.
func (s *Service) removeEntries(dir, prefix string, maxAge time.Duration, kind string, keep ...string) int {
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Cleanup cannot read %s: %v", dir, err)
		}
		return 0
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if prefix != "" && !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if len(keep) > 0 && slices.Contains(keep, absPath(path)) {
			logging.Debug("Cleanup kept %s: still used by a job", path)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("Cleanup failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	metrics.CleanupRemovedTotal.WithLabelValues(kind).Add(float64(removed))
	return removed
}

// cronLogger routes robfig/cron messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
