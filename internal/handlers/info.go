package handlers

import (
	"fmt"
	"net/http"

	"media-toolkit/internal/probe"
)

// VideoInfoResponse describes an uploaded file.
type VideoInfoResponse struct {
	*probe.Result
	Filename          string  `json:"filename"`
	SizeMB            float64 `json:"sizeMb"`
	DurationFormatted string  `json:"durationFormatted"`
	Resolution        string  `json:"resolution"`
}

// GetVideoInfo probes an uploaded file and reports its duration, size,
// resolution and codecs. It does not consume quota.
// POST /api/video/info
func (h *Handlers) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
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

	src, err := h.prober.Probe(r.Context(), u.Path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusOK, VideoInfoResponse{
		Result:            src,
		Filename:          u.Filename,
		SizeMB:            src.SizeMB(),
		DurationFormatted: formatDuration(src.DurationSeconds),
		Resolution:        fmt.Sprintf("%dx%d", src.Width, src.Height),
	})
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
