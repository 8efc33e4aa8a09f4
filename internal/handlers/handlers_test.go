package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"media-toolkit/internal/planner"
	"media-toolkit/internal/probe"
	"media-toolkit/internal/quota"
	"media-toolkit/internal/transcoder"
	"media-toolkit/internal/workers"
)

type fakeProber struct {
	res *probe.Result
	err error
}

func (f fakeProber) Probe(_ context.Context, path string) (*probe.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.res
	r.Path = path
	return &r, nil
}

// scenarioSource is 10 minutes of 1080p at 500 MB.
func scenarioSource() *probe.Result {
	return &probe.Result{
		DurationSeconds: 600,
		Width:           1920,
		Height:          1080,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
		FileSizeBytes:   500 * 1024 * 1024,
	}
}

type stubQuota struct {
	decision quota.Decision
	usage    quota.Usage
	err      error
	clients  []string
}

func (s *stubQuota) CheckAndReserve(_ context.Context, clientID string, _ int64) (quota.Decision, error) {
	s.clients = append(s.clients, clientID)
	return s.decision, s.err
}

func (s *stubQuota) Usage(_ context.Context, clientID string) (quota.Usage, error) {
	s.clients = append(s.clients, clientID)
	return s.usage, s.err
}

type testEnv struct {
	h         *Handlers
	router    *mux.Router
	uploadDir string
	outputDir string
}

func newTestEnv(t *testing.T, ffmpeg string, prober transcoder.Prober, checker quota.Checker) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		uploadDir: filepath.Join(root, "uploads"),
		outputDir: filepath.Join(root, "outputs"),
	}
	if ffmpeg == "" {
		ffmpeg = filepath.Join(root, "no-ffmpeg")
	}
	if prober == nil {
		prober = fakeProber{res: scenarioSource()}
	}

	pl := planner.New(planner.Config{})
	trans := transcoder.New(transcoder.Config{
		FFmpegPath: ffmpeg,
		WorkDir:    filepath.Join(root, "work"),
		OutputDir:  env.outputDir,
	}, prober, pl)
	manager := transcoder.NewManager(trans, workers.NewLimiter(2))
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
	})

	env.h = New(manager, prober, pl, checker, Config{
		UploadDir:      env.uploadDir,
		MaxUploadBytes: 1 << 20,
	})
	env.h.checkTools = func() error { return nil }

	env.router = mux.NewRouter()
	env.h.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) uploads(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read upload dir: %v", err)
	}
	return entries
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.7:40000"
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad field", badRequestf("nope"), http.StatusBadRequest},
		{"no file", errNoFile, http.StatusBadRequest},
		{"too large", errTooLarge, http.StatusRequestEntityTooLarge},
		{"no ffmpeg", errToolsMissing, http.StatusServiceUnavailable},
		{"unreadable", &probe.Error{Kind: probe.KindUnreadable}, http.StatusBadRequest},
		{"no video", &probe.Error{Kind: probe.KindNoVideoStream}, http.StatusBadRequest},
		{"probe timeout", &probe.Error{Kind: probe.KindTimeout}, http.StatusBadRequest},
		{"target not smaller", &planner.Error{Kind: planner.KindTargetNotSmaller}, http.StatusBadRequest},
		{"invalid params", &planner.Error{Kind: planner.KindInvalidParameters}, http.StatusBadRequest},
		{"timeout", &transcoder.Error{Kind: transcoder.KindTimeout}, http.StatusGatewayTimeout},
		{"cancelled", &transcoder.Error{Kind: transcoder.KindCancelled}, http.StatusRequestTimeout},
		{"encode failure", &transcoder.Error{Kind: transcoder.KindEncodeFailure}, http.StatusInternalServerError},
		{"workspace", &transcoder.Error{Kind: transcoder.KindWorkspaceAllocationFailed}, http.StatusInternalServerError},
		{"not found", transcoder.ErrJobNotFound, http.StatusNotFound},
		{"finished", transcoder.ErrJobFinished, http.StatusConflict},
		{"shutdown", transcoder.ErrShutdown, http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("outer: %w", &probe.Error{Kind: probe.KindNoVideoStream}), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := statusFor(tt.err)
			if got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
			if msg == "" && tt.name != "target not smaller" && tt.name != "invalid params" {
				t.Error("Expected a client-facing message")
			}
		})
	}
}

func TestRequestFromFields(t *testing.T) {
	tests := []struct {
		name    string
		mode    planner.Mode
		fields  map[string]string
		want    planner.Request
		wantErr bool
	}{
		{
			name:   "target size",
			mode:   planner.ModeTargetSize,
			fields: map[string]string{"target_size_mb": "100"},
			want:   planner.Request{Mode: planner.ModeTargetSize, TargetSizeMB: 100},
		},
		{name: "target size missing", mode: planner.ModeTargetSize, fields: map[string]string{}, wantErr: true},
		{name: "target size negative", mode: planner.ModeTargetSize, fields: map[string]string{"target_size_mb": "-1"}, wantErr: true},
		{name: "target size text", mode: planner.ModeTargetSize, fields: map[string]string{"target_size_mb": "big"}, wantErr: true},
		{
			name:   "quality",
			mode:   planner.ModeQuality,
			fields: map[string]string{"preset": "high"},
			want:   planner.Request{Mode: planner.ModeQuality, Preset: planner.PresetHigh},
		},
		{name: "quality bad preset", mode: planner.ModeQuality, fields: map[string]string{"preset": "ultra"}, wantErr: true},
		{
			name:   "resolution",
			mode:   planner.ModeResolution,
			fields: map[string]string{"resolution": "720p", "preset": "medium"},
			want:   planner.Request{Mode: planner.ModeResolution, TargetHeight: 720, Preset: planner.PresetMedium},
		},
		{name: "resolution missing preset", mode: planner.ModeResolution, fields: map[string]string{"resolution": "720p"}, wantErr: true},
		{name: "resolution odd height", mode: planner.ModeResolution, fields: map[string]string{"resolution": "999p", "preset": "low"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := requestFromFields(tt.mode, tt.fields, "/tmp/src.mp4")
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				if code, _ := statusFor(err); code != http.StatusBadRequest {
					t.Errorf("Expected 400 for %v, got %d", err, code)
				}
				return
			}
			if err != nil {
				t.Fatalf("requestFromFields() error = %v", err)
			}
			tt.want.SourcePath = "/tmp/src.mp4"
			if got != tt.want {
				t.Errorf("requestFromFields() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDownloadName(t *testing.T) {
	tests := map[string]string{
		"holiday.mov":  "compressed_holiday.mp4",
		"clip.mp4":     "compressed_clip.mp4",
		"":             "compressed_video.mp4",
		"a.b.c.webm":   "compressed_a.b.c.mp4",
		"no-extension": "compressed_no-extension.mp4",
	}
	for in, want := range tests {
		if got := downloadName(in); got != want {
			t.Errorf("downloadName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEstimate(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)

	req := multipartRequest(t, "/api/video/compress/estimate",
		map[string]string{"mode": "target_size", "target_size_mb": "100"}, "movie.mp4", []byte("not really a movie"))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		OriginalSizeMB   float64 `json:"originalSizeMb"`
		EstimatedSizeMB  float64 `json:"estimatedSizeMb"`
		ReductionPercent float64 `json:"reductionPercent"`
		Heuristic        bool    `json:"heuristic"`
	}
	decode(t, w, &got)

	if got.OriginalSizeMB != 500 {
		t.Errorf("Expected originalSizeMb=500, got %v", got.OriginalSizeMB)
	}
	if got.EstimatedSizeMB > 100 || got.EstimatedSizeMB < 99 {
		t.Errorf("Expected estimatedSizeMb just under 100, got %v", got.EstimatedSizeMB)
	}
	if got.ReductionPercent < 79 || got.ReductionPercent > 81 {
		t.Errorf("Expected reductionPercent near 80, got %v", got.ReductionPercent)
	}
	if got.Heuristic {
		t.Error("Target size estimates are not heuristic")
	}
	if n := len(env.uploads(t)); n != 0 {
		t.Errorf("Expected upload to be removed, %d files left", n)
	}
}

func TestEstimateHeuristicNote(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)

	w := env.do(multipartRequest(t, "/api/video/compress/estimate",
		map[string]string{"mode": "quality", "preset": "medium"}, "movie.mkv", []byte("x")))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got EstimateResponse
	decode(t, w, &got)
	if !got.Heuristic || got.Note == "" {
		t.Errorf("Expected heuristic estimate with a note, got %+v", got)
	}
}

func TestEstimateErrors(t *testing.T) {
	tests := []struct {
		name     string
		prober   transcoder.Prober
		fields   map[string]string
		filename string
		content  []byte
		want     int
	}{
		{
			name:     "target not smaller",
			fields:   map[string]string{"mode": "target_size", "target_size_mb": "500"},
			filename: "a.mp4",
			want:     http.StatusBadRequest,
		},
		{
			name:     "no video stream",
			prober:   fakeProber{err: &probe.Error{Kind: probe.KindNoVideoStream}},
			fields:   map[string]string{"mode": "quality", "preset": "low"},
			filename: "a.mp4",
			want:     http.StatusBadRequest,
		},
		{
			name:     "invalid mode",
			fields:   map[string]string{"mode": "sharpen"},
			filename: "a.mp4",
			want:     http.StatusBadRequest,
		},
		{
			name:     "unsupported extension",
			fields:   map[string]string{"mode": "quality", "preset": "low"},
			filename: "a.exe",
			want:     http.StatusBadRequest,
		},
		{
			name:   "missing file",
			fields: map[string]string{"mode": "quality", "preset": "low"},
			want:   http.StatusBadRequest,
		},
		{
			name:     "too large",
			fields:   map[string]string{"mode": "quality", "preset": "low"},
			filename: "big.mp4",
			content:  make([]byte, 2<<20),
			want:     http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", tt.prober, nil)
			content := tt.content
			if content == nil {
				content = []byte("data")
			}
			w := env.do(multipartRequest(t, "/api/video/compress/estimate", tt.fields, tt.filename, content))
			if w.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var body map[string]interface{}
			decode(t, w, &body)
			if body["detail"] == nil {
				t.Error("Expected a detail field")
			}
			if n := len(env.uploads(t)); n != 0 {
				t.Errorf("Expected no uploads left, found %d", n)
			}
		})
	}
}

func TestNotMultipart(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/video/compress/quality", bytes.NewBufferString(`{"preset":"low"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestToolsMissing(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)
	env.h.checkTools = func() error { return errors.New("ffmpeg not found") }

	for _, path := range []string{
		"/api/video/compress/estimate",
		"/api/video/compress/quality",
		"/api/jobs",
	} {
		w := env.do(multipartRequest(t, path, map[string]string{"mode": "quality", "preset": "low"}, "a.mp4", []byte("x")))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz: expected 503, got %d", w.Code)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	var health HealthResponse
	decode(t, w, &health)
	if w.Code != http.StatusServiceUnavailable || health.Status != statusDegraded || health.FFmpegAvailable {
		t.Errorf("Expected degraded health with 503, got %d %+v", w.Code, health)
	}
}

func TestQuotaRefused(t *testing.T) {
	checker := &stubQuota{decision: quota.Decision{
		Allowed: false,
		Reason:  quota.ReasonDailyLimit,
		Message: "Daily limit reached",
		Usage:   quota.Usage{Used: 5},
	}}
	env := newTestEnv(t, "", nil, checker)

	for _, path := range []string{"/api/video/compress/quality", "/api/jobs"} {
		req := multipartRequest(t, path, map[string]string{"mode": "quality", "preset": "medium"}, "a.mp4", []byte("x"))
		req.Header.Set("X-Forwarded-For", "198.51.100.1")
		w := env.do(req)
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("%s: expected 429, got %d: %s", path, w.Code, w.Body.String())
		}
		var body map[string]interface{}
		decode(t, w, &body)
		if body["detail"] != "Daily limit reached" || body["reason"] != quota.ReasonDailyLimit {
			t.Errorf("Unexpected 429 body: %v", body)
		}
	}

	if len(checker.clients) != 2 || checker.clients[0] != "198.51.100.1" {
		t.Errorf("Expected quota to be keyed by forwarded client ip, got %v", checker.clients)
	}
	if n := len(env.uploads(t)); n != 0 {
		t.Errorf("Expected refused uploads to be removed, found %d", n)
	}
}

func TestQuotaNotConsumedByInvalidRequest(t *testing.T) {
	checker := &stubQuota{decision: quota.Decision{Allowed: true}}
	env := newTestEnv(t, "", nil, checker)

	w := env.do(multipartRequest(t, "/api/video/compress/quality", map[string]string{"preset": "ultra"}, "a.mp4", []byte("x")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if len(checker.clients) != 0 {
		t.Error("Expected no quota reservation for an invalid request")
	}
}

func TestGetUsage(t *testing.T) {
	checker := &stubQuota{usage: quota.Usage{Used: 2, Remaining: 3, MaxFileSizeMB: 25}}
	env := newTestEnv(t, "", nil, checker)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/usage", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got quota.Usage
	decode(t, w, &got)
	if got.Used != 2 || got.Remaining != 3 || got.MaxFileSizeMB != 25 {
		t.Errorf("Unexpected usage %+v", got)
	}

	checker.err = errors.New("db locked")
	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/usage", http.NoBody)); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 on store error, got %d", w.Code)
	}
}

func TestUnknownJob(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing", http.NoBody),
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing/artifact", http.NoBody),
		httptest.NewRequest(http.MethodDelete, "/api/jobs/missing", http.NoBody),
	} {
		if w := env.do(req); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", req.Method, req.URL.Path, w.Code)
		}
	}
}

func TestListJobsEmpty(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var jobs []transcoder.Status
	decode(t, w, &jobs)
	if len(jobs) != 0 {
		t.Errorf("Expected no jobs, got %d", len(jobs))
	}
}

func TestLivenessAndVersion(t *testing.T) {
	env := newTestEnv(t, "", nil, nil)

	w := env.do(httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("Expected bodiless 200 for HEAD /livez, got %d with %d bytes", w.Code, w.Body.Len())
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/version", http.NoBody))
	var info map[string]string
	decode(t, w, &info)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("Unexpected version body %v", info)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	var health HealthResponse
	decode(t, w, &health)
	if w.Code != http.StatusOK || !health.Ready || health.Status != statusHealthy {
		t.Errorf("Expected healthy, got %d %+v", w.Code, health)
	}
	if health.MaxConcurrentJobs != 2 {
		t.Errorf("Expected maxConcurrentJobs=2, got %d", health.MaxConcurrentJobs)
	}
}

func TestGetVideoInfo(t *testing.T) {
	checker := &stubQuota{decision: quota.Decision{Allowed: false, Reason: quota.ReasonDailyLimit}}
	env := newTestEnv(t, "", nil, checker)

	w := env.do(multipartRequest(t, "/api/video/info", nil, "holiday.mov", []byte("not really a movie")))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got VideoInfoResponse
	decode(t, w, &got)
	if got.Filename != "holiday.mov" {
		t.Errorf("Expected filename holiday.mov, got %q", got.Filename)
	}
	if got.Result == nil {
		t.Fatal("Expected probe fields in response")
	}
	if got.DurationSeconds != 600 || got.FileSizeBytes != 500*1024*1024 {
		t.Errorf("Unexpected duration/size %v/%d", got.DurationSeconds, got.FileSizeBytes)
	}
	if got.VideoCodec != "h264" || got.AudioCodec != "aac" {
		t.Errorf("Unexpected codecs %s/%s", got.VideoCodec, got.AudioCodec)
	}
	if got.Resolution != "1920x1080" || got.DurationFormatted != "10:00" || got.SizeMB != 500 {
		t.Errorf("Unexpected summary %q %q %v", got.Resolution, got.DurationFormatted, got.SizeMB)
	}
	if strings.Contains(w.Body.String(), env.uploadDir) {
		t.Error("Upload path should not be exposed")
	}
	if n := len(env.uploads(t)); n != 0 {
		t.Errorf("Expected upload to be removed, %d files left", n)
	}
	if len(checker.clients) != 0 {
		t.Errorf("Info requests should not touch the quota, got %v", checker.clients)
	}
}

func TestGetVideoInfoErrors(t *testing.T) {
	tests := []struct {
		name     string
		prober   transcoder.Prober
		filename string
		want     int
	}{
		{"no video stream", fakeProber{err: &probe.Error{Kind: probe.KindNoVideoStream}}, "a.mp4", http.StatusBadRequest},
		{"unreadable", fakeProber{err: &probe.Error{Kind: probe.KindUnreadable}}, "a.mp4", http.StatusBadRequest},
		{"unsupported extension", nil, "a.txt", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", tt.prober, nil)
			w := env.do(multipartRequest(t, "/api/video/info", nil, tt.filename, []byte("x")))
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if n := len(env.uploads(t)); n != 0 {
				t.Errorf("Expected upload to be removed, %d files left", n)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59.9, "0:59"},
		{600, "10:00"},
		{3661.5, "1:01:01"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
