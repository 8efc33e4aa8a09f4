package probe

import (
	"errors"
	"fmt"
)

// Kind classifies probe failures.
type Kind string

const (
	KindUnreadable    Kind = "unreadable"
	KindNoVideoStream Kind = "no_video_stream"
	KindTimeout       Kind = "timeout"
)

// Sentinels for errors.Is.
var (
	ErrUnreadable    = errors.New("probe: unreadable media")
	ErrNoVideoStream = errors.New("probe: no video stream")
	ErrTimeout       = errors.New("probe: timed out")
)

// Error is returned by every failing probe.
type Error struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("probe %s: %s", e.Kind, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindUnreadable:
		return target == ErrUnreadable
	case KindNoVideoStream:
		return target == ErrNoVideoStream
	case KindTimeout:
		return target == ErrTimeout
	}
	return false
}

func newError(kind Kind, path, detail string, err error) *Error {
	return &Error{Kind: kind, Path: path, Detail: detail, Err: err}
}
