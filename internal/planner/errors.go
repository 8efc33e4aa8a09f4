package planner

import (
	"errors"
	"fmt"
)

// Kind classifies planning failures.
type Kind string

const (
	KindTargetNotSmaller  Kind = "target_not_smaller"
	KindInvalidParameters Kind = "invalid_parameters"
)

// Sentinels for errors.Is.
var (
	ErrTargetNotSmaller  = errors.New("plan: target size is not smaller than the source")
	ErrInvalidParameters = errors.New("plan: invalid parameters")
)

// Error is returned for requests that cannot be planned.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plan %s: %s", e.Kind, e.Detail)
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindTargetNotSmaller:
		return target == ErrTargetNotSmaller
	case KindInvalidParameters:
		return target == ErrInvalidParameters
	}
	return false
}

func invalidf(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidParameters, Detail: fmt.Sprintf(format, args...)}
}
