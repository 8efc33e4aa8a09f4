// Package logging provides leveled logging for the media toolkit service.
//
// Levels, lowest to highest:
//   - DEBUG: command lines, probe output, state transitions
//   - INFO: job lifecycle and startup sections
//   - WARN: recoverable problems (cleanup failures, bad config values)
//   - ERROR: failed jobs and handler errors
//
// The level comes from DEBUG=true or LOG_LEVEL. Job-scoped lines go
// through a JobLogger so every message carries the job id.
package logging
