package transcoder

import (
	"errors"
	"fmt"
	"strings"

	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
)

// Kind classifies encode job failures.
type Kind string

const (
	KindEncodeFailure             Kind = "encode_failure"
	KindTimeout                   Kind = "timeout"
	KindCancelled                 Kind = "cancelled"
	KindWorkspaceAllocationFailed Kind = "workspace_allocation_failed"
)

// Sentinels for errors.Is.
var (
	ErrEncodeFailure             = errors.New("encode: encoder failed")
	ErrTimeout                   = errors.New("encode: job deadline exceeded")
	ErrCancelled                 = errors.New("encode: job cancelled")
	ErrWorkspaceAllocationFailed = errors.New("encode: workspace allocation failed")

	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrShutdown    = errors.New("job manager is shutting down")

	errIllegalTransition = errors.New("illegal state transition")
)

// diagnosticLines and diagnosticLimit bound the encoder output carried in
// error messages and job status.
const (
	diagnosticLines = 3
	diagnosticLimit = 512
)

// Error describes a failed encode job.
type Error struct {
	Kind   Kind
	JobID  string
	Pass   string
	Detail string

	// Stderr is the tail of the encoder's diagnostic output.
	Stderr   string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("job %s %s", e.JobID, e.Kind)
	if e.Pass != "" {
		msg += " (" + e.Pass + " pass)"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if d := e.Diagnostic(); d != "" {
		msg += ": " + d
	}
	return msg
}

// Diagnostic returns the last few non-empty lines of the encoder output,
// joined with "; " and capped at diagnosticLimit bytes.
func (e *Error) Diagnostic() string {
	var lines []string
	for _, l := range strings.Split(strings.TrimPrefix(e.Stderr, "..."), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > diagnosticLines {
		lines = lines[len(lines)-diagnosticLines:]
	}
	d := strings.Join(lines, "; ")
	if len(d) > diagnosticLimit {
		d = "..." + d[len(d)-diagnosticLimit:]
	}
	return d
}

// DiagnosticOf returns the encoder diagnostic carried by err, if any.
func DiagnosticOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Diagnostic()
	}
	return ""
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindEncodeFailure:
		return target == ErrEncodeFailure
	case KindTimeout:
		return target == ErrTimeout
	case KindCancelled:
		return target == ErrCancelled
	case KindWorkspaceAllocationFailed:
		return target == ErrWorkspaceAllocationFailed
	}
	return false
}

// reasonFor names the failure kind of err for job status reporting.
func reasonFor(err error) string {
	var (
		te *Error
		pe *probe.Error
		le *planner.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return string(te.Kind)
	case errors.As(err, &pe):
		return "probe_" + string(pe.Kind)
	case errors.As(err, &le):
		return string(le.Kind)
	}
	return string(KindEncodeFailure)
}
