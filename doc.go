// Command media-toolkit serves the video compression API.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads .env and environment variables, creates
//     the data directories
//  2. Quota Store: Opens the SQLite usage database and runs migrations
//     (skipped when QUOTA_ENABLED=false)
//  3. Transcoder: Checks FFmpeg, builds the prober, planner, transcoder and
//     the job manager bounded by MAX_CONCURRENT_JOBS
//  4. Cleanup: Removes workspaces orphaned by a previous run and schedules
//     periodic sweeps
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, kills running encoders
//     and removes their workspaces
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8000):
//     - /api/video/info for file metadata
//     - /api/video/compress/{estimate,target-size,quality,resolution}
//     - /api/jobs for background jobs
//     - /api/usage, health and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// See package startup for the environment variables.
package main
