/*
Package streaming sends compressed artifacts to HTTP clients without letting
a slow or vanished client pin a handler goroutine.

TimeoutWriter wraps an http.ResponseWriter with a per-write timeout, an idle
timeout and an optional cap on total duration. Large writes are split into
chunks and flushed so cancellation is noticed between chunks.

ServeArtifact is the usual entry point:

	err := streaming.ServeArtifact(r.Context(), w, res.ArtifactPath,
		"compressed_clip.mp4", streaming.DefaultTimeoutWriterConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("download failed: %v", err)
	}

Errors:

  - ErrClientGone: the request context ended; not a server fault
  - ErrWriteTimeout: a write exceeded WriteTimeout or the stream exceeded MaxDuration
  - ErrStreamCanceled: the writer was closed or the connection went idle
*/
package streaming
