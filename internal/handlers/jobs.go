package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"media-toolkit/internal/transcoder"
)

// SubmitResponse is returned when a job is accepted.
type SubmitResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"statusUrl"`
}

// SubmitJob accepts a compression request and runs it in the background.
// The mode comes from the "mode" form field.
// POST /api/jobs
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := h.toolsAvailable(); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.receiveUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	mode, err := modeFromFields(u.Fields)
	if err != nil {
		u.remove()
		writeError(w, err)
		return
	}

	req, err := requestFromFields(mode, u.Fields, u.Path)
	if err != nil {
		u.remove()
		writeError(w, err)
		return
	}

	if !h.reserve(w, r, u.Size) {
		u.remove()
		return
	}

	id, err := h.manager.Submit(req, transcoder.SubmitOptions{Filename: u.Filename, RemoveSource: true})
	if err != nil {
		u.remove()
		writeError(w, err)
		return
	}

	statusURL := "/api/jobs/" + id
	w.Header().Set("Location", statusURL)
	writeJSONStatus(w, http.StatusAccepted, SubmitResponse{ID: id, StatusURL: statusURL})
}

// ListJobs returns every tracked job, newest first.
// GET /api/jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.manager.List()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	writeJSONStatus(w, http.StatusOK, jobs)
}

// GetJob returns the status of one job.
// GET /api/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	status, ok := h.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, transcoder.ErrJobNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, status)
}

// GetJobArtifact streams a completed job's output. The artifact stays
// available until the retention sweep removes the job.
// GET /api/jobs/{id}/artifact
func (h *Handlers) GetJobArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := h.manager.Get(id)
	if !ok {
		writeError(w, transcoder.ErrJobNotFound)
		return
	}

	switch status.State {
	case transcoder.StateCompleted:
		if status.ArtifactPath == "" {
			writeJSONError(w, "Job is still finalizing", http.StatusConflict)
			return
		}
	case transcoder.StateFailed, transcoder.StateTimedOut:
		writeJSONStatus(w, http.StatusConflict, ErrorResponse{
			Detail:     "Job did not complete: " + status.Reason,
			Diagnostic: status.Diagnostic,
		})
		return
	default:
		writeJSONError(w, "Job is still "+string(status.State), http.StatusConflict)
		return
	}

	h.serveResult(w, r, &transcoder.Result{
		JobID:           status.ID,
		ArtifactPath:    status.ArtifactPath,
		OutputSizeBytes: status.OutputSizeBytes,
		Probe:           status.Probe,
	}, status.Filename)
}

// CancelJob cancels a queued or running job.
// DELETE /api/jobs/{id}
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}
