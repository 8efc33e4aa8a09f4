package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-toolkit/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status          string `json:"status"`
	Ready           bool   `json:"ready"`
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	FFmpegAvailable bool   `json:"ffmpegAvailable"`

	// Job info
	RunningJobs       int            `json:"runningJobs"`
	WaitingJobs       int            `json:"waitingJobs"`
	MaxConcurrentJobs int            `json:"maxConcurrentJobs"`
	TrackedJobs       map[string]int `json:"trackedJobs"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. A missing encoder
// is reported as degraded with 503 since no job can succeed.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.manager.GetStats()
	toolsOK := h.checkTools() == nil

	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             toolsOK,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		FFmpegAvailable:   toolsOK,
		RunningJobs:       stats.Running,
		WaitingJobs:       stats.Waiting,
		MaxConcurrentJobs: stats.Capacity,
		TrackedJobs:       stats.ByState,
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	code := http.StatusOK
	if !toolsOK {
		response.Status = statusDegraded
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the encoder binaries are available
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.checkTools() == nil {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
