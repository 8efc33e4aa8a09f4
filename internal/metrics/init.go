package metrics

// Label values shared with the packages that record them.
var (
	Modes       = []string{"target_size", "quality", "resolution"}
	FinalStates = []string{"completed", "failed", "timed_out"}
	JobStates   = []string{"queued", "probing", "planning", "encoding_pass1", "encoding_pass2", "finalizing", "completed", "failed", "timed_out"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mode := range Modes {
		for _, state := range FinalStates {
			JobsTotal.WithLabelValues(mode, state)
		}
		JobDuration.WithLabelValues(mode)
		EstimatesTotal.WithLabelValues(mode, "success")
		EstimatesTotal.WithLabelValues(mode, "error")
	}

	for _, pass := range []string{"analysis", "final", "single"} {
		EncodePassDuration.WithLabelValues(pass)
	}

	for _, state := range JobStates {
		TrackedJobs.WithLabelValues(state)
	}

	for _, status := range []string{"success", "unreadable", "no_video_stream", "timeout"} {
		ProbeTotal.WithLabelValues(status)
	}

	QuotaDecisionsTotal.WithLabelValues("allow", "ok")
	QuotaDecisionsTotal.WithLabelValues("allow", "pro")
	QuotaDecisionsTotal.WithLabelValues("deny", "file_too_large")
	QuotaDecisionsTotal.WithLabelValues("deny", "daily_limit")
	for _, op := range []string{"check_and_reserve", "usage", "set_pro", "purge"} {
		QuotaQueryDuration.WithLabelValues(op)
	}

	for _, result := range []string{"complete", "client_gone", "timeout", "error"} {
		ArtifactDownloadsTotal.WithLabelValues(result)
	}

	for _, kind := range []string{"workspace", "output", "upload", "job", "usage"} {
		CleanupRemovedTotal.WithLabelValues(kind)
	}
}
