// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] reads a .env file (or the file named by ENV_FILE) through
// godotenv and then the process environment:
//
//   - PORT: HTTP server port (default: 8000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - DATA_DIR: Root for uploads/, work/, outputs/ and quota.db (default: ./data)
//   - FFMPEG_PATH, FFPROBE_PATH: Encoder binaries (default: from PATH)
//   - PROBE_TIMEOUT: Per-probe bound (default: 10s)
//   - ENCODE_TIMEOUT: Whole-job deadline (default: 10m)
//   - MAX_CONCURRENT_JOBS: Encodes allowed at once (default: one per CPU)
//   - MAX_UPLOAD_SIZE_MB: Hard request body cap (default: 500)
//   - AUDIO_BITRATE_KBPS, MIN_VIDEO_BITRATE_KBPS: Planner inputs (default: 128, 100)
//   - QUOTA_ENABLED, QUOTA_SECRET: Usage limits and the client id hashing key
//   - FREE_DAILY_LIMIT, FREE_MAX_FILE_MB, PRO_MAX_FILE_MB: Tier limits (default: 5, 25, 500)
//   - OUTPUT_RETENTION: Age after which finished artifacts are removed (default: 1h)
//   - CLEANUP_SCHEDULE: Cron spec for sweeps (default: @every 15m)
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Logging controls
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
