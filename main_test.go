package main

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"media-toolkit/internal/handlers"
	"media-toolkit/internal/middleware"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/startup"
	"media-toolkit/internal/transcoder"
	"media-toolkit/internal/workers"
)

func testHandlers(t *testing.T) *handlers.Handlers {
	t.Helper()
	root := t.TempDir()
	pl := planner.New(planner.Config{})
	prober := probe.New(filepath.Join(root, "ffprobe"), 0)
	trans := transcoder.New(transcoder.Config{
		FFmpegPath: filepath.Join(root, "ffmpeg"),
		WorkDir:    filepath.Join(root, "work"),
		OutputDir:  filepath.Join(root, "outputs"),
	}, prober, pl)
	manager := transcoder.NewManager(trans, workers.NewLimiter(1))
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	return handlers.New(manager, prober, pl, nil, handlers.Config{
		UploadDir:      filepath.Join(root, "uploads"),
		MaxUploadBytes: 1 << 20,
		FFmpegPath:     filepath.Join(root, "ffmpeg"),
		FFprobePath:    filepath.Join(root, "ffprobe"),
	})
}

func TestQuotaLimits(t *testing.T) {
	limits := quotaLimits(&startup.Config{FreeDailyLimit: 3, FreeMaxFileMB: 10, ProMaxFileMB: 100})

	if limits.FreeDailyJobs != 3 {
		t.Errorf("Expected FreeDailyJobs=3, got %d", limits.FreeDailyJobs)
	}
	if limits.FreeMaxFileBytes != 10<<20 || limits.ProMaxFileBytes != 100<<20 {
		t.Errorf("Unexpected file limits %+v", limits)
	}
	if limits.Window <= 0 || limits.Retention <= 0 {
		t.Error("Expected default window and retention to be kept")
	}
}

func TestSetupRouter(t *testing.T) {
	router := setupRouter(testHandlers(t))

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	want := map[string]bool{
		"POST /api/video/info":                 false,
		"POST /api/video/compress/estimate":    false,
		"POST /api/video/compress/target-size": false,
		"POST /api/video/compress/quality":     false,
		"POST /api/video/compress/resolution":  false,
		"POST /api/jobs":                       false,
		"GET /api/jobs/{id}":                   false,
		"DELETE /api/jobs/{id}":                false,
		"GET /api/jobs/{id}/artifact":          false,
		"GET /api/usage":                       false,
		"GET /livez":                           false,
	}
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("Route %s not registered", route)
		}
	}
}

func TestWrapHandler(t *testing.T) {
	handler := wrapHandler(setupRouter(testHandlers(t)), &startup.Config{LogHealthChecks: false})

	// the encoder binaries do not exist, so readiness fails
	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from /readyz, got %d", w.Code)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected a request id on every response")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /api/jobs, got %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(w.Body)
		if err != nil {
			t.Fatal(err)
		}
		defer gr.Close()
	} else if !strings.HasPrefix(strings.TrimSpace(w.Body.String()), "[") {
		t.Errorf("Expected a JSON list, got %q", w.Body.String())
	}
}
