package transcoder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
)

// State is an encode job's lifecycle position.
type State string

const (
	StateQueued        State = "queued"
	StateProbing       State = "probing"
	StatePlanning      State = "planning"
	StateEncodingPass1 State = "encoding_pass1"
	StateEncodingPass2 State = "encoding_pass2"
	StateFinalizing    State = "finalizing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateTimedOut      State = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// forward lists the non-failure transitions. Failed and TimedOut are
// reachable from every non-terminal state.
var forward = map[State][]State{
	StateQueued:        {StateProbing},
	StateProbing:       {StatePlanning},
	StatePlanning:      {StateEncodingPass1},
	StateEncodingPass1: {StateEncodingPass2, StateFinalizing},
	StateEncodingPass2: {StateFinalizing},
	StateFinalizing:    {StateCompleted},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateTimedOut {
		return true
	}
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result is the outcome of one encode job.
type Result struct {
	JobID  string
	State  State
	Reason string
	// ArtifactPath is set only for Completed jobs and lies outside the
	// job's workspace.
	ArtifactPath    string
	OutputSizeBytes int64
	Plan            *planner.Plan
	Probe           *probe.Result
	Duration        time.Duration
	Err             error
}

// Job is a single encode job. Its mutable fields are guarded by mu; the
// rest is fixed at creation.
type Job struct {
	ID        string
	Request   planner.Request
	Filename  string
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	state      State
	workspace  string
	plan       *planner.Plan
	probe      *probe.Result
	startedAt  time.Time
	deadline   time.Time
	finishedAt time.Time
	result     *Result
}

func newJob(parent context.Context, req planner.Request) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateQueued,
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the final result, or nil while the job is running.
func (j *Job) Result() *Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

func (j *Job) transition(to State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !canTransition(j.state, to) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, j.state, to)
	}
	j.state = to
	return nil
}

func (j *Job) start(deadline time.Time) {
	j.mu.Lock()
	j.startedAt = time.Now()
	j.deadline = deadline
	j.mu.Unlock()
}

func (j *Job) setProbe(r *probe.Result) {
	j.mu.Lock()
	j.probe = r
	j.mu.Unlock()
}

func (j *Job) setPlan(p *planner.Plan) {
	j.mu.Lock()
	j.plan = p
	j.mu.Unlock()
}

func (j *Job) setWorkspace(dir string) {
	j.mu.Lock()
	j.workspace = dir
	j.mu.Unlock()
}

// Workspace returns the job's scratch directory, or "" before allocation.
func (j *Job) Workspace() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.workspace
}

// finish records the terminal result and releases waiters. Only the first
// call has any effect.
func (j *Job) finish(res *Result) bool {
	j.mu.Lock()
	if j.result != nil {
		j.mu.Unlock()
		return false
	}
	if !j.state.Terminal() {
		j.state = res.State
	}
	j.result = res
	j.finishedAt = time.Now()
	j.mu.Unlock()

	j.cancel()
	close(j.done)
	return true
}

// Status is a point-in-time view of a job, safe to serialize.
type Status struct {
	ID              string        `json:"id"`
	Mode            planner.Mode  `json:"mode"`
	Filename        string        `json:"filename,omitempty"`
	State           State         `json:"state"`
	Reason          string        `json:"reason,omitempty"`
	Error           string        `json:"error,omitempty"`
	Diagnostic      string        `json:"diagnostic,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	Deadline        *time.Time    `json:"deadline,omitempty"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
	Probe           *probe.Result `json:"probe,omitempty"`
	Plan            *planner.Plan `json:"plan,omitempty"`
	OutputSizeBytes int64         `json:"outputSizeBytes,omitempty"`
	ArtifactPath    string        `json:"-"`
}

// Snapshot returns the job's current status.
func (j *Job) Snapshot() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Status{
		ID:        j.ID,
		Mode:      j.Request.Mode,
		Filename:  j.Filename,
		State:     j.state,
		CreatedAt: j.CreatedAt,
		Probe:     j.probe,
		Plan:      j.plan,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		s.StartedAt = &t
	}
	if !j.deadline.IsZero() {
		t := j.deadline
		s.Deadline = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	if r := j.result; r != nil {
		s.Reason = r.Reason
		s.OutputSizeBytes = r.OutputSizeBytes
		s.ArtifactPath = r.ArtifactPath
		if r.Err != nil {
			s.Error = r.Err.Error()
			s.Diagnostic = DiagnosticOf(r.Err)
		}
	}
	return s
}

func (j *Job) finishedBefore(t time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result != nil && j.finishedAt.Before(t)
}
