package startup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool
	DataDir        string

	FFmpegPath  string
	FFprobePath string

	ProbeTimeout      time.Duration
	EncodeTimeout     time.Duration
	MaxConcurrentJobs int
	MaxUploadBytes    int64

	AudioBitrateKbps    int
	MinVideoBitrateKbps int

	QuotaEnabled   bool
	QuotaSecret    string
	FreeDailyLimit int
	FreeMaxFileMB  int64
	ProMaxFileMB   int64

	OutputRetention time.Duration
	CleanupSchedule string

	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths
	UploadDir   string
	WorkDir     string
	OutputDir   string
	QuotaDBPath string

	// FFmpegAvailable reflects the startup check; handlers re-check per
	// request through CheckTools.
	FFmpegAvailable bool
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file (or the file named by ENV_FILE) is read first; variables
// already set in the environment win.
func LoadConfig() (*Config, error) {
	envFile := loadDotEnv()

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if envFile != "" {
		logging.Info("  Loaded environment from %s", envFile)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8000"),
		MetricsPort:         getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		DataDir:             getEnv("DATA_DIR", "./data"),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		ProbeTimeout:        getEnvDuration("PROBE_TIMEOUT", 10*time.Second),
		EncodeTimeout:       getEnvDuration("ENCODE_TIMEOUT", 10*time.Minute),
		MaxConcurrentJobs:   getEnvInt("MAX_CONCURRENT_JOBS", workers.ForCPU(0)),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 500)) << 20,
		AudioBitrateKbps:    getEnvInt("AUDIO_BITRATE_KBPS", 128),
		MinVideoBitrateKbps: getEnvInt("MIN_VIDEO_BITRATE_KBPS", 100),
		QuotaEnabled:        getEnvBool("QUOTA_ENABLED", true),
		QuotaSecret:         os.Getenv("QUOTA_SECRET"),
		FreeDailyLimit:      getEnvInt("FREE_DAILY_LIMIT", 5),
		FreeMaxFileMB:       int64(getEnvInt("FREE_MAX_FILE_MB", 25)),
		ProMaxFileMB:        int64(getEnvInt("PRO_MAX_FILE_MB", 500)),
		OutputRetention:     getEnvDuration("OUTPUT_RETENTION", time.Hour),
		CleanupSchedule:     getEnv("CLEANUP_SCHEDULE", "@every 15m"),
		LogStaticFiles:      getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks:     getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  PORT:                   %s", cfg.Port)
	logging.Info("  METRICS_PORT:           %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:        %v", cfg.MetricsEnabled)
	logging.Info("  DATA_DIR:               %s", cfg.DataDir)
	logging.Info("  FFMPEG_PATH:            %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:           %s", cfg.FFprobePath)
	logging.Info("  PROBE_TIMEOUT:          %v", cfg.ProbeTimeout)
	logging.Info("  ENCODE_TIMEOUT:         %v", cfg.EncodeTimeout)
	logging.Info("  MAX_CONCURRENT_JOBS:    %d", cfg.MaxConcurrentJobs)
	logging.Info("  MAX_UPLOAD_SIZE_MB:     %d", cfg.MaxUploadBytes>>20)
	logging.Info("  AUDIO_BITRATE_KBPS:     %d", cfg.AudioBitrateKbps)
	logging.Info("  MIN_VIDEO_BITRATE_KBPS: %d", cfg.MinVideoBitrateKbps)
	logging.Info("  QUOTA_ENABLED:          %v", cfg.QuotaEnabled)
	logging.Info("  FREE_DAILY_LIMIT:       %d", cfg.FreeDailyLimit)
	logging.Info("  FREE_MAX_FILE_MB:       %d", cfg.FreeMaxFileMB)
	logging.Info("  PRO_MAX_FILE_MB:        %d", cfg.ProMaxFileMB)
	logging.Info("  OUTPUT_RETENTION:       %v", cfg.OutputRetention)
	logging.Info("  CLEANUP_SCHEDULE:       %s", cfg.CleanupSchedule)
	logging.Info("  LOG_STATIC_FILES:       %v", cfg.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:      %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:              %s", logging.GetLevel())

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.QuotaEnabled && cfg.QuotaSecret == "" {
		cfg.QuotaSecret = randomSecret()
		logging.Warn("  QUOTA_SECRET not set; using a random key, usage resets on restart")
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = dataDir
	cfg.UploadDir = filepath.Join(dataDir, "uploads")
	cfg.WorkDir = filepath.Join(dataDir, "work")
	cfg.OutputDir = filepath.Join(dataDir, "outputs")
	cfg.QuotaDBPath = filepath.Join(dataDir, "quota.db")
	logging.Info("  Data directory (absolute): %s", dataDir)

	for _, d := range []struct{ path, name string }{
		{cfg.DataDir, "data"},
		{cfg.UploadDir, "uploads"},
		{cfg.WorkDir, "work"},
		{cfg.OutputDir, "outputs"},
	} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %-8s %s", d.name, d.path)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("PROBE_TIMEOUT must be positive"))
	}
	if c.EncodeTimeout <= 0 {
		errs = append(errs, errors.New("ENCODE_TIMEOUT must be positive"))
	}
	if c.MaxConcurrentJobs < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENT_JOBS must be at least 1"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE_MB must be positive"))
	}
	if c.AudioBitrateKbps <= 0 || c.MinVideoBitrateKbps <= 0 {
		errs = append(errs, errors.New("bitrates must be positive"))
	}
	return errors.Join(errs...)
}

// loadDotEnv reads ENV_FILE or ./.env when present and returns the file
// used.
func loadDotEnv() string {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	if err := godotenv.Load(path); err != nil {
		logging.Warn("Failed to load %s: %v", path, err)
		return ""
	}
	return path
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logging.Fatal("failed to generate quota secret: %v", err)
	}
	return hex.EncodeToString(b)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogQuotaInit logs quota store initialization
func LogQuotaInit(enabled bool, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("QUOTA STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if !enabled {
		logging.Info("  Quotas DISABLED (QUOTA_ENABLED=false)")
		return
	}
	logging.Info("  [OK] Quota store initialized in %v", duration)
}

// LogTranscoderInit checks the encoder binaries and records the result in
// cfg.FFmpegAvailable.
func LogTranscoderInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err := checkFFmpeg(cfg.FFmpegPath, cfg.FFprobePath); err != nil {
		cfg.FFmpegAvailable = false
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Compression endpoints will answer 503 until FFmpeg is installed")
	} else {
		cfg.FFmpegAvailable = true
		logging.Info("  [OK] FFmpeg is available")
	}
	logging.Info("  Concurrent jobs:  %d", cfg.MaxConcurrentJobs)
	logging.Info("  Job deadline:     %v", cfg.EncodeTimeout)
	logging.Info("  Work directory:   %s", cfg.WorkDir)
}

// LogCleanupInit logs cleanup scheduling
func LogCleanupInit(schedule string, retention time.Duration, orphans int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CLEANUP INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Schedule:          %s", schedule)
	logging.Info("  Output retention:  %v", retention)
	if orphans > 0 {
		logging.Info("  Orphaned workspaces removed: %d", orphans)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group == "" {
				group = "root"
			}
			logging.Debug("  [%s]", group)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  Static file logging:  %s", enabledString(logStaticFiles))
	logging.Info("  Health check logging: %s", enabledString(logHealthChecks))
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Application:     http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	fmt.Println(`
------------------------------------------------------------
  media-toolkit :: video compression service
------------------------------------------------------------`)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// CheckTools reports whether both encoder binaries can be found.
func CheckTools(ffmpeg, ffprobe string) error {
	for _, bin := range []string{ffmpeg, ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

func checkFFmpeg(ffmpeg, ffprobe string) error {
	if err := CheckTools(ffmpeg, ffprobe); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, ffmpeg, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Info("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
