//go:build unix

package process

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestCommandKillsGroupOnCancel(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The background sleep inherits the stderr pipe; if only the direct
	// child were killed, Wait would block until WaitDelay.
	cmd := Command(ctx, "sh", "-c", "sleep 30 & sleep 30; wait")
	cmd.Stderr = NewTailBuffer(64)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected error from cancelled command")
	}
	if elapsed > 3*time.Second {
		t.Errorf("Command took %v to stop; process group was not killed", elapsed)
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", ctx.Err())
	}
}

func TestExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	err := Command(context.Background(), "sh", "-c", "exit 3").Run()
	if got := ExitCode(err); got != 3 {
		t.Errorf("ExitCode() = %d, want 3", got)
	}
	if got := ExitCode(errors.New("boom")); got != -1 {
		t.Errorf("ExitCode(non-exit error) = %d, want -1", got)
	}
}

func TestKillNotStarted(t *testing.T) {
	if err := Kill(nil); err != nil {
		t.Errorf("Kill(nil) = %v", err)
	}
	if err := Kill(exec.Command("true")); err != nil {
		t.Errorf("Kill(unstarted) = %v", err)
	}
}
