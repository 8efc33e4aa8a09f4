package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/process"
)

// DefaultTimeout bounds a whole job, from probe to finalization.
const DefaultTimeout = 10 * time.Minute

// stderrTailLimit caps the encoder diagnostics kept for a failed pass.
const stderrTailLimit = 4096

// Prober inspects a source file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.Result, error)
}

// Config configures a Transcoder.
type Config struct {
	// FFmpegPath defaults to "ffmpeg" from PATH.
	FFmpegPath string
	// WorkDir holds per-job workspaces.
	WorkDir string
	// OutputDir receives finished artifacts.
	OutputDir string
	// Timeout bounds each job. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Transcoder runs compression jobs against an external ffmpeg.
type Transcoder struct {
	ffmpeg    string
	workDir   string
	outputDir string
	timeout   time.Duration

	prober  Prober
	planner *planner.Planner

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates a Transcoder.
func New(cfg Config, prober Prober, pl *planner.Planner) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "media-toolkit", "work")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "media-toolkit", "outputs")
	}
	return &Transcoder{
		ffmpeg:    cfg.FFmpegPath,
		workDir:   cfg.WorkDir,
		outputDir: cfg.OutputDir,
		timeout:   cfg.Timeout,
		prober:    prober,
		planner:   pl,
		processes: make(map[string]*exec.Cmd),
	}
}

// WorkDir returns the directory holding job workspaces.
func (t *Transcoder) WorkDir() string { return t.workDir }

// OutputDir returns the directory holding finished artifacts.
func (t *Transcoder) OutputDir() string { return t.outputDir }

// Timeout returns the per-job deadline.
func (t *Transcoder) Timeout() time.Duration { return t.timeout }

// Run executes one job synchronously. The returned Result is never nil;
// its Err matches the returned error.
func (t *Transcoder) Run(ctx context.Context, req planner.Request) (*Result, error) {
	job := newJob(ctx, req)
	res := t.execute(job)
	return res, res.Err
}

// execute drives job through its states and records the outcome on it.
func (t *Transcoder) execute(job *Job) *Result {
	ctx, cancel := context.WithTimeout(job.ctx, t.timeout)
	defer cancel()

	start := time.Now()
	deadline, _ := ctx.Deadline()
	job.start(deadline)

	log := logging.Job(job.ID)
	log.Info("Starting %s compression of %s", job.Request.Mode, job.Request.SourcePath)

	res := &Result{JobID: job.ID}
	err := t.encode(ctx, job, res, log)
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = t.classify(ctx, job, err)
		res.State = StateFailed
		if errors.Is(res.Err, ErrTimeout) {
			res.State = StateTimedOut
		}
		res.Reason = reasonFor(res.Err)
		res.ArtifactPath = ""
		res.OutputSizeBytes = 0
		if res.State == StateTimedOut {
			log.Warn("Timed out after %v", res.Duration.Round(time.Millisecond))
		} else {
			log.Error("Failed: %v", res.Err)
		}
	} else {
		res.State = StateCompleted
		log.Info("Completed in %v: %d -> %d bytes",
			res.Duration.Round(time.Millisecond), res.Probe.FileSizeBytes, res.OutputSizeBytes)
	}

	if err := job.transition(res.State); err != nil {
		log.Warn("%v", err)
	}
	job.finish(res)
	recordJob(job.Request.Mode, res)
	return res
}

// encode performs probe, plan, encode and finalize. The workspace never
// outlives this call.
func (t *Transcoder) encode(ctx context.Context, job *Job, res *Result, log logging.JobLogger) error {
	if err := job.transition(StateProbing); err != nil {
		return err
	}
	src, err := t.prober.Probe(ctx, job.Request.SourcePath)
	if err != nil {
		return err
	}
	res.Probe = src
	job.setProbe(src)

	if err := job.transition(StatePlanning); err != nil {
		return err
	}
	plan, err := t.planner.BuildPlan(job.Request, src)
	if err != nil {
		return err
	}
	res.Plan = plan
	job.setPlan(plan)
	for _, note := range plan.Notes {
		log.Info("%s", note)
	}

	ws, err := allocateWorkspace(t.workDir, job.ID)
	if err != nil {
		return &Error{Kind: KindWorkspaceAllocationFailed, JobID: job.ID, Detail: t.workDir, Err: err}
	}
	job.setWorkspace(ws)
	defer releaseWorkspace(ws)
	log.Debug("Workspace %s", ws)

	if err := job.transition(StateEncodingPass1); err != nil {
		return err
	}
	if plan.TwoPass() {
		if err := t.runPass(ctx, job, passAnalysis, analysisArgs(src.Path, ws, plan)); err != nil {
			return err
		}
		if err := job.transition(StateEncodingPass2); err != nil {
			return err
		}
		if err := t.runPass(ctx, job, passFinal, finalArgs(src.Path, ws, plan)); err != nil {
			return err
		}
	} else {
		if err := t.runPass(ctx, job, passSingle, finalArgs(src.Path, ws, plan)); err != nil {
			return err
		}
	}

	if err := job.transition(StateFinalizing); err != nil {
		return err
	}
	return t.finalize(ctx, job, res, ws)
}

// finalize validates the encoder output and moves it out of the workspace.
func (t *Transcoder) finalize(ctx context.Context, job *Job, res *Result, ws string) error {
	output := filepath.Join(ws, outputFilename)
	info, err := os.Stat(output)
	if err != nil {
		return &Error{Kind: KindEncodeFailure, JobID: job.ID, Detail: "encoder produced no output", Err: err}
	}
	if info.Size() == 0 {
		return &Error{Kind: KindEncodeFailure, JobID: job.ID, Detail: "encoder produced an empty file"}
	}
	if info.Size() >= res.Probe.FileSizeBytes {
		return &Error{
			Kind:  KindEncodeFailure,
			JobID: job.ID,
			Detail: fmt.Sprintf("output (%d bytes) is not smaller than the source (%d bytes)",
				info.Size(), res.Probe.FileSizeBytes),
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(t.outputDir, job.ID+".mp4")
	if err := moveFile(output, dst); err != nil {
		return &Error{Kind: KindEncodeFailure, JobID: job.ID, Detail: "failed to store artifact", Err: err}
	}
	res.ArtifactPath = dst
	res.OutputSizeBytes = info.Size()
	return nil
}

// runPass runs one ffmpeg invocation in its own process group.
func (t *Transcoder) runPass(ctx context.Context, job *Job, pass string, args []string) error {
	cmd := process.Command(ctx, t.ffmpeg, args...)
	cmd.Dir = job.Workspace()
	stderr := process.NewTailBuffer(stderrTailLimit)
	cmd.Stderr = stderr

	logging.Debug("ffmpeg %v", args)

	start := time.Now()
	err := cmd.Start()
	if err == nil {
		// Cleanup reads cmd.Process; register only after Start.
		t.processMu.Lock()
		t.processes[job.ID] = cmd
		t.processMu.Unlock()

		err = cmd.Wait()

		t.processMu.Lock()
		delete(t.processes, job.ID)
		t.processMu.Unlock()
	}
	metrics.EncodePassDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{
			Kind:     KindEncodeFailure,
			JobID:    job.ID,
			Pass:     pass,
			Stderr:   stderr.String(),
			ExitCode: process.ExitCode(err),
			Err:      err,
		}
	}
	return nil
}

// classify maps context expiry onto the job error taxonomy. A deadline
// wins over whatever error the interrupted step reported.
func (t *Transcoder) classify(ctx context.Context, job *Job, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, JobID: job.ID, Detail: fmt.Sprintf("exceeded %v", t.timeout)}
	case ctx.Err() != nil:
		return &Error{Kind: KindCancelled, JobID: job.ID, Err: context.Cause(job.ctx)}
	}
	return err
}

// abandon finishes a job that never started running, e.g. one cancelled
// while queued for a worker slot.
func (t *Transcoder) abandon(job *Job, cause error) *Result {
	res := &Result{
		JobID: job.ID,
		State: StateFailed,
		Err:   &Error{Kind: KindCancelled, JobID: job.ID, Detail: "cancelled before start", Err: cause},
	}
	res.Reason = reasonFor(res.Err)
	if err := job.transition(StateFailed); err != nil {
		logging.Warn("job %s: %v", job.ID, err)
	}
	job.finish(res)
	recordJob(job.Request.Mode, res)
	return res
}

// Cleanup kills every running encoder process group.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for id, cmd := range t.processes {
		logging.Info("Killing encoder for job %s", id)
		if err := process.Kill(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("failed to kill encoder for job %s: %v", id, err)
		}
	}
}

// ActiveProcesses returns the number of running encoder processes.
func (t *Transcoder) ActiveProcesses() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

func recordJob(mode planner.Mode, res *Result) {
	metrics.JobsTotal.WithLabelValues(string(mode), string(res.State)).Inc()
	metrics.JobDuration.WithLabelValues(string(mode)).Observe(res.Duration.Seconds())
}
