package handlers

import (
	"time"

	"media-toolkit/internal/planner"
	"media-toolkit/internal/quota"
	"media-toolkit/internal/startup"
	"media-toolkit/internal/streaming"
	"media-toolkit/internal/transcoder"
)

// Config carries the handler settings taken from startup.Config.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	FFmpegPath     string
	FFprobePath    string
}

// Handlers serves the compression API.
type Handlers struct {
	manager *transcoder.Manager
	prober  transcoder.Prober
	planner *planner.Planner
	quota   quota.Checker

	uploadDir      string
	maxUploadBytes int64
	stream         streaming.TimeoutWriterConfig
	startTime      time.Time

	// checkTools reports whether the encoder binaries are usable.
	checkTools func() error
}

// New creates Handlers. A nil checker means no usage limits.
func New(m *transcoder.Manager, prober transcoder.Prober, pl *planner.Planner, checker quota.Checker, cfg Config) *Handlers {
	if checker == nil {
		checker = quota.Unlimited{}
	}
	return &Handlers{
		manager:        m,
		prober:         prober,
		planner:        pl,
		quota:          checker,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		stream:         streaming.DefaultTimeoutWriterConfig(),
		startTime:      time.Now(),
		checkTools: func() error {
			return startup.CheckTools(cfg.FFmpegPath, cfg.FFprobePath)
		},
	}
}
