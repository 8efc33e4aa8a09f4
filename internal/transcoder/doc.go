// Package transcoder runs video compression jobs against an external
// ffmpeg binary.
//
// A job moves through
//
//	queued -> probing -> planning -> encoding_pass1 [-> encoding_pass2]
//	       -> finalizing -> completed
//
// and may drop to failed or timed_out from any non-terminal state. Each job
// owns a private workspace under the work directory, created after planning
// and removed on every exit path. Encoder processes run in their own
// process group, which is killed as a whole on deadline or cancellation.
// Completed artifacts are moved to the output directory before the
// workspace goes away.
//
// Transcoder.Run executes a single job synchronously. Manager runs jobs in
// the background, bounded by a workers.Limiter, and keeps their state in
// memory for polling until Prune removes them.
package transcoder
