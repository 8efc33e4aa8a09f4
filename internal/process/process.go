// Package process starts external tools (ffmpeg, ffprobe) in their own
// process group so a deadline or cancellation kills every descendant, not
// just the direct child.
package process

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Wait keeps draining stdout/stderr pipes
// after the group has been killed.
const DefaultWaitDelay = 5 * time.Second

// Command returns an exec.Cmd bound to ctx. When ctx is done the whole
// process group receives SIGKILL.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	setGroup(cmd)
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	cmd.WaitDelay = DefaultWaitDelay
	return cmd
}

// Kill terminates the process group of a started command. It is a no-op
// for commands that never started.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return killGroup(cmd)
}

// ExitCode returns the exit status carried by err, or -1 when err is not
// an *exec.ExitError.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
