// Package metrics provides Prometheus instrumentation for the media toolkit.
//
// All metrics are prefixed with "media_toolkit_" and registered on the
// default registry through promauto, so they are exported by promhttp on
// the metrics port.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, path and status
//   - HTTPRequestDuration: request latency by method and path
//   - HTTPRequestsInFlight: requests currently being served
//
// ## Compression Job Metrics
//
//   - JobsTotal: finished jobs by mode and terminal state
//   - JobDuration: wall time of finished jobs by mode
//   - JobsInProgress: jobs currently holding an encode slot
//   - JobsWaiting: jobs waiting for an encode slot
//   - EncodePassDuration: duration of individual encoder invocations
//   - TrackedJobs: jobs kept in memory for polling, by state
//
// ## Probe and Estimate Metrics
//
//   - ProbeTotal / ProbeDuration: ffprobe invocations by outcome
//   - EstimatesTotal: estimate requests by mode and outcome
//
// ## Quota Metrics
//
//   - QuotaDecisionsTotal: allow/deny decisions by reason
//   - QuotaQueryDuration: usage store query latency by operation
//
// ## Cleanup Metrics
//
//   - CleanupRemovedTotal: stale artifacts removed by kind
//   - CleanupLastRunTimestamp: completion time of the last sweep
package metrics
