package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds every API route to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/video/info", h.GetVideoInfo).Methods(http.MethodPost)

	video := r.PathPrefix("/api/video/compress").Subrouter()
	video.HandleFunc("/estimate", h.EstimateCompression).Methods(http.MethodPost)
	video.HandleFunc("/target-size", h.CompressTargetSize).Methods(http.MethodPost)
	video.HandleFunc("/quality", h.CompressQuality).Methods(http.MethodPost)
	video.HandleFunc("/resolution", h.CompressResolution).Methods(http.MethodPost)

	jobs := r.PathPrefix("/api/jobs").Subrouter()
	jobs.HandleFunc("", h.SubmitJob).Methods(http.MethodPost)
	jobs.HandleFunc("", h.ListJobs).Methods(http.MethodGet)
	jobs.HandleFunc("/{id}", h.GetJob).Methods(http.MethodGet)
	jobs.HandleFunc("/{id}", h.CancelJob).Methods(http.MethodDelete)
	jobs.HandleFunc("/{id}/artifact", h.GetJobArtifact).Methods(http.MethodGet)

	r.HandleFunc("/api/usage", h.GetUsage).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
}
