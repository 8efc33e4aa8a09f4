package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-toolkit/internal/cleanup"
	"media-toolkit/internal/handlers"
	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
	"media-toolkit/internal/middleware"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/quota"
	"media-toolkit/internal/startup"
	"media-toolkit/internal/transcoder"
	"media-toolkit/internal/workers"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	// Quota store
	quotaStart := time.Now()
	var (
		checker quota.Checker = quota.Unlimited{}
		purger  cleanup.UsagePurger
		store   *quota.Store
	)
	if config.QuotaEnabled {
		store, err = quota.Open(context.Background(), config.QuotaDBPath, config.QuotaSecret, quotaLimits(config))
		if err != nil {
			startup.LogFatal("Failed to open quota store: %v", err)
		}
		checker = store
		purger = store
	}
	startup.LogQuotaInit(config.QuotaEnabled, time.Since(quotaStart))

	// Transcoder
	startup.LogTranscoderInit(config)
	pl := planner.New(planner.Config{
		AudioBitrateKbps:    config.AudioBitrateKbps,
		MinVideoBitrateKbps: config.MinVideoBitrateKbps,
	})
	prober := probe.New(config.FFprobePath, config.ProbeTimeout)
	trans := transcoder.New(transcoder.Config{
		FFmpegPath: config.FFmpegPath,
		WorkDir:    config.WorkDir,
		OutputDir:  config.OutputDir,
		Timeout:    config.EncodeTimeout,
	}, prober, pl)
	manager := transcoder.NewManager(trans, workers.NewLimiter(config.MaxConcurrentJobs))

	// Cleanup
	sweeper, err := cleanup.New(cleanup.Config{
		WorkDir:         config.WorkDir,
		OutputDir:       config.OutputDir,
		UploadDir:       config.UploadDir,
		WorkspacePrefix: transcoder.WorkspacePrefix,
		WorkspaceMaxAge: 2 * config.EncodeTimeout,
		Retention:       config.OutputRetention,
		Schedule:        config.CleanupSchedule,
	}, manager, purger)
	if err != nil {
		startup.LogFatal("Invalid cleanup configuration: %v", err)
	}
	orphans := sweeper.RemoveOrphanedWorkspaces()
	if err := sweeper.Start(); err != nil {
		startup.LogFatal("Failed to start cleanup: %v", err)
	}
	startup.LogCleanupInit(config.CleanupSchedule, config.OutputRetention, orphans)

	collector := metrics.NewCollector(manager, 15*time.Second)
	collector.Start()

	h := handlers.New(manager, prober, pl, checker, handlers.Config{
		UploadDir:      config.UploadDir,
		MaxUploadBytes: config.MaxUploadBytes,
		FFmpegPath:     config.FFmpegPath,
		FFprobePath:    config.FFprobePath,
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapHandler(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and encodes run inside the request; per-write deadlines
		// are enforced by the streaming package.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	go handleShutdown(srv, metricsSrv, manager, sweeper, collector, store)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	// Block until handleShutdown finishes.
	<-shutdownDone
}

var shutdownDone = make(chan struct{})

func quotaLimits(config *startup.Config) quota.Limits {
	limits := quota.DefaultLimits()
	limits.FreeDailyJobs = config.FreeDailyLimit
	limits.FreeMaxFileBytes = config.FreeMaxFileMB << 20
	limits.ProMaxFileBytes = config.ProMaxFileMB << 20
	return limits
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.RegisterRoutes(r)
	return r
}

// wrapHandler applies the outer middleware chain.
func wrapHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	compressionConfig := middleware.DefaultCompressionConfig()
	compressionConfig.SkipPaths = []string{"/api/video/compress/target-size", "/api/video/compress/quality", "/api/video/compress/resolution"}

	handler := middleware.Compression(compressionConfig)(router)
	handler = middleware.Logger(loggingConfig)(handler)
	return middleware.RequestID(handler)
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, manager *transcoder.Manager, sweeper *cleanup.Service, collector *metrics.Collector, store *quota.Store) {
	defer close(shutdownDone)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping cleanup scheduler")
	sweeper.Stop(ctx)
	startup.LogShutdownStepComplete("Cleanup scheduler stopped")

	startup.LogShutdownStep("Cancelling encode jobs")
	if err := manager.Shutdown(ctx); err != nil {
		logging.Warn("Jobs did not stop in time: %v", err)
	} else {
		startup.LogShutdownStepComplete("Encode jobs stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	collector.Stop()

	if store != nil {
		if err := store.Close(); err != nil {
			logging.Warn("Failed to close quota store: %v", err)
		} else {
			startup.LogShutdownStepComplete("Quota store closed")
		}
	}

	startup.LogShutdownComplete()
}
