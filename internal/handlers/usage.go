package handlers

import (
	"net/http"

	"media-toolkit/internal/logging"
	"media-toolkit/internal/middleware"
)

// GetUsage reports the calling client's remaining allowance.
// GET /api/usage
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.quota.Usage(r.Context(), middleware.ClientIP(r))
	if err != nil {
		logging.Error("Usage lookup failed: %v", err)
		writeJSONError(w, "Usage lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, usage)
}
