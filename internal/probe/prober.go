package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
	"media-toolkit/internal/process"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 10 * time.Second

const stderrLimit = 2048

// Prober runs ffprobe against files.
type Prober struct {
	binary  string
	timeout time.Duration
}

// New creates a Prober. An empty binary means "ffprobe" from PATH; a
// non-positive timeout means DefaultTimeout.
func New(binary string, timeout time.Duration) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{binary: binary, timeout: timeout}
}

// Probe inspects path and returns its validated metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	r, err := p.probe(ctx, path)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	status := "success"
	var perr *Error
	if errors.As(err, &perr) {
		status = string(perr.Kind)
	}
	metrics.ProbeTotal.WithLabelValues(status).Inc()
	return r, err
}

func (p *Prober) probe(ctx context.Context, path string) (*Result, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := process.Command(probeCtx, p.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	stderr := process.NewTailBuffer(stderrLimit)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	logging.Debug("Probing %s", path)

	if err := cmd.Run(); err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, newError(KindTimeout, path, fmt.Sprintf("no result within %v", p.timeout), nil)
		}
		if ctx.Err() != nil {
			return nil, newError(KindUnreadable, path, "probe cancelled", ctx.Err())
		}
		return nil, newError(KindUnreadable, path, stderr.String(), err)
	}

	r, err := ParseJSON(path, stdout.Bytes())
	if err != nil {
		return nil, err
	}

	if r.FileSizeBytes <= 0 {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, newError(KindUnreadable, path, "cannot stat file", statErr)
		}
		r.FileSizeBytes = info.Size()
	}
	if r.FileSizeBytes <= 0 {
		return nil, newError(KindUnreadable, path, "file is empty", nil)
	}

	logging.Debug("Probed %s: %dx%d %s/%s %.2fs %d bytes",
		path, r.Width, r.Height, r.VideoCodec, r.AudioCodec, r.DurationSeconds, r.FileSizeBytes)
	return r, nil
}
