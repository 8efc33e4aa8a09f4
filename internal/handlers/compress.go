package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/metrics"
	"media-toolkit/internal/middleware"
	"media-toolkit/internal/planner"
	"media-toolkit/internal/streaming"
	"media-toolkit/internal/transcoder"
)

// EstimateResponse is returned by the estimate endpoint.
type EstimateResponse struct {
	*planner.Estimate
	Note string `json:"note,omitempty"`
}

// requestFromFields builds a compression request for mode from form fields.
func requestFromFields(mode planner.Mode, fields map[string]string, source string) (planner.Request, error) {
	req := planner.Request{Mode: mode, SourcePath: source}

	switch mode {
	case planner.ModeTargetSize:
		v := fields["target_size_mb"]
		if v == "" {
			return req, badRequestf("target_size_mb is required")
		}
		size, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, badRequestf("target_size_mb must be a number")
		}
		if size <= 0 {
			return req, badRequestf("Target size must be positive")
		}
		req.TargetSizeMB = size
	case planner.ModeResolution:
		height, err := planner.ParseResolution(fields["resolution"])
		if err != nil {
			return req, badRequestf("Invalid resolution. Use: 2160p, 1440p, 1080p, 720p, 480p, 360p")
		}
		req.TargetHeight = height
		fallthrough
	case planner.ModeQuality:
		preset, err := planner.ParsePreset(fields["preset"])
		if err != nil {
			return req, badRequestf("Invalid preset. Use low/medium/high")
		}
		req.Preset = preset
	default:
		return req, badRequestf("Invalid mode")
	}

	return req, req.Validate()
}

// modeFromFields reads the "mode" field.
func modeFromFields(fields map[string]string) (planner.Mode, error) {
	mode, err := planner.ParseMode(fields["mode"])
	if err != nil {
		return "", badRequestf("Invalid mode")
	}
	return mode, nil
}

// EstimateCompression predicts the output size of a compression without
// encoding anything.
// POST /api/video/compress/estimate
func (h *Handlers) EstimateCompression(w http.ResponseWriter, r *http.Request) {
	if err := h.toolsAvailable(); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.receiveUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer u.remove()

	mode, err := modeFromFields(u.Fields)
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := requestFromFields(mode, u.Fields, u.Path)
	if err != nil {
		metrics.EstimatesTotal.WithLabelValues(string(mode), "error").Inc()
		writeError(w, err)
		return
	}

	src, err := h.prober.Probe(r.Context(), u.Path)
	if err != nil {
		metrics.EstimatesTotal.WithLabelValues(string(mode), "error").Inc()
		writeError(w, err)
		return
	}

	est, err := h.planner.Estimate(req, src)
	if err != nil {
		metrics.EstimatesTotal.WithLabelValues(string(mode), "error").Inc()
		writeError(w, err)
		return
	}

	metrics.EstimatesTotal.WithLabelValues(string(mode), "success").Inc()
	writeJSONStatus(w, http.StatusOK, EstimateResponse{
		Estimate: est,
		Note:     strings.Join(est.Notes, " "),
	})
}

// CompressTargetSize compresses to a target file size with two passes.
// POST /api/video/compress/target-size
func (h *Handlers) CompressTargetSize(w http.ResponseWriter, r *http.Request) {
	h.compress(w, r, planner.ModeTargetSize)
}

// CompressQuality compresses at a constant quality preset.
// POST /api/video/compress/quality
func (h *Handlers) CompressQuality(w http.ResponseWriter, r *http.Request) {
	h.compress(w, r, planner.ModeQuality)
}

// CompressResolution downscales and compresses at a quality preset.
// POST /api/video/compress/resolution
func (h *Handlers) CompressResolution(w http.ResponseWriter, r *http.Request) {
	h.compress(w, r, planner.ModeResolution)
}

// compress runs one job to completion inside the request and streams the
// artifact back. The upload and the artifact are removed afterwards.
func (h *Handlers) compress(w http.ResponseWriter, r *http.Request, mode planner.Mode) {
	if err := h.toolsAvailable(); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.receiveUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer u.remove()

	req, err := requestFromFields(mode, u.Fields, u.Path)
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.reserve(w, r, u.Size) {
		return
	}

	res, err := h.manager.Run(r.Context(), req, transcoder.SubmitOptions{Filename: u.Filename})
	if res != nil && res.ArtifactPath != "" {
		defer removeArtifact(res.ArtifactPath)
	}
	if err != nil {
		if r.Context().Err() != nil {
			logging.Debug("Client left during %s compression of %q", mode, u.Filename)
			return
		}
		writeError(w, err)
		return
	}

	h.serveResult(w, r, res, u.Filename)
}

// serveResult streams a completed job's artifact.
func (h *Handlers) serveResult(w http.ResponseWriter, r *http.Request, res *transcoder.Result, filename string) {
	w.Header().Set("X-Job-ID", res.JobID)
	if res.Probe != nil {
		w.Header().Set("X-Original-Size", strconv.FormatInt(res.Probe.FileSizeBytes, 10))
	}
	w.Header().Set("X-Compressed-Size", strconv.FormatInt(res.OutputSizeBytes, 10))

	err := streaming.ServeArtifact(r.Context(), w, res.ArtifactPath, downloadName(filename), h.stream)
	switch {
	case err == nil, errors.Is(err, streaming.ErrClientGone):
	case errors.Is(err, streaming.ErrArtifactUnavailable):
		w.Header().Del("X-Job-ID")
		w.Header().Del("X-Original-Size")
		w.Header().Del("X-Compressed-Size")
		logging.Error("Artifact for job %s unavailable: %v", res.JobID, err)
		writeJSONError(w, "Compressed file is no longer available", http.StatusGone)
	default:
		logging.Warn("Streaming artifact for job %s failed: %v", res.JobID, err)
	}
}

// reserve consults the quota for the requesting client and writes a 429 when
// the request is refused.
func (h *Handlers) reserve(w http.ResponseWriter, r *http.Request, size int64) bool {
	decision, err := h.quota.CheckAndReserve(r.Context(), middleware.ClientIP(r), size)
	if err != nil {
		logging.Error("Quota check failed: %v", err)
		writeJSONError(w, "Usage check failed", http.StatusInternalServerError)
		return false
	}
	if !decision.Allowed {
		writeJSONStatus(w, http.StatusTooManyRequests, map[string]interface{}{
			"detail":  decision.Message,
			"error":   "Usage limit exceeded",
			"reason":  decision.Reason,
			"usage":   decision.Usage,
			"upgrade": "/pricing",
		})
		return false
	}
	return true
}

func (h *Handlers) toolsAvailable() error {
	if err := h.checkTools(); err != nil {
		logging.Debug("encoder check failed: %v", err)
		return errToolsMissing
	}
	return nil
}

func removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("failed to remove artifact %s: %v", path, err)
	}
}
