// Package handlers provides the HTTP API of the compression service.
//
// It includes handlers for:
//   - File metadata at /api/video/info
//   - Size estimates and blocking compression under /api/video/compress
//   - Background jobs with polling, artifact download and cancellation
//   - Per-client usage reporting
//   - Health checks and version information
//
// Errors are returned as {"detail": "..."} with a status derived from the
// failure kind; see statusFor. Encoder failures add a "diagnostic" field
// holding the tail of the encoder output.
package handlers
