package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolkit_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Compression job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_jobs_total",
			Help: "Total number of finished compression jobs",
		},
		[]string{"mode", "state"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolkit_job_duration_seconds",
			Help:    "Compression job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"mode"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolkit_jobs_in_progress",
			Help: "Number of compression jobs currently holding an encode slot",
		},
	)

	JobsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolkit_jobs_waiting",
			Help: "Number of compression jobs waiting for an encode slot",
		},
	)

	EncodePassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolkit_encode_pass_duration_seconds",
			Help:    "Duration of a single encoder invocation in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"pass"}, // "analysis", "final", "single"
	)

	TrackedJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolkit_tracked_jobs",
			Help: "Number of jobs held in memory for status polling, by state",
		},
		[]string{"state"},
	)
)

// Probe and estimate metrics
var (
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_probe_total",
			Help: "Total number of media probes",
		},
		[]string{"status"},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_toolkit_probe_duration_seconds",
			Help:    "Media probe duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_estimates_total",
			Help: "Total number of size estimates",
		},
		[]string{"mode", "status"},
	)
)

// Quota metrics
var (
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_quota_decisions_total",
			Help: "Total number of quota decisions",
		},
		[]string{"result", "reason"},
	)

	QuotaQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolkit_quota_query_duration_seconds",
			Help:    "Usage store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Cleanup metrics
var (
	CleanupRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_cleanup_removed_total",
			Help: "Total number of stale items removed by the cleanup sweep",
		},
		[]string{"kind"}, // "workspace", "output", "upload", "job", "usage"
	)

	CleanupLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolkit_cleanup_last_run_timestamp",
			Help: "Unix timestamp of the last cleanup sweep",
		},
	)
)

// Artifact download metrics
var (
	ArtifactDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolkit_artifact_downloads_total",
			Help: "Total number of compressed artifact downloads by outcome",
		},
		[]string{"result"}, // "complete", "client_gone", "timeout", "error"
	)

	ArtifactBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_toolkit_artifact_bytes_sent_total",
			Help: "Total bytes of compressed artifacts sent to clients",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolkit_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
