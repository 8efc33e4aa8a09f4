package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
)

// ErrArtifactUnavailable is returned when the artifact cannot be opened.
// Nothing has been written to the response in that case.
var ErrArtifactUnavailable = errors.New("artifact unavailable")

// ServeArtifact sends the file at path as an MP4 attachment named
// downloadName. Headers are written only after the file is opened, so an
// error before any bytes are sent leaves the response untouched.
func ServeArtifact(ctx context.Context, w http.ResponseWriter, path, downloadName string, config TimeoutWriterConfig) error {
	file, err := os.Open(path)
	if err != nil {
		metrics.ArtifactDownloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close artifact %s: %v", path, err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		metrics.ArtifactDownloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	return StreamWithTimeout(ctx, w, file, config)
}

// StreamWithTimeout copies r to w through a TimeoutWriter and records the
// outcome. ErrClientGone is returned as is so callers can ignore it.
func StreamWithTimeout(ctx context.Context, w http.ResponseWriter, r io.Reader, config TimeoutWriterConfig) error {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, r)

	bytesWritten, duration := tw.Stats()
	metrics.ArtifactBytesSent.Add(float64(bytesWritten))

	switch {
	case err == nil:
		metrics.ArtifactDownloadsTotal.WithLabelValues("complete").Inc()
		logging.Debug("Stream completed: %d bytes in %v", bytesWritten, duration)
	case errors.Is(err, ErrClientGone):
		metrics.ArtifactDownloadsTotal.WithLabelValues("client_gone").Inc()
		logging.Debug("Client left after %d bytes", bytesWritten)
	case errors.Is(err, ErrWriteTimeout), errors.Is(err, ErrStreamCanceled):
		metrics.ArtifactDownloadsTotal.WithLabelValues("timeout").Inc()
		logging.Warn("Stream stalled after %d bytes in %v: %v", bytesWritten, duration, err)
	default:
		metrics.ArtifactDownloadsTotal.WithLabelValues("error").Inc()
	}
	return err
}
