// Package handlers implements the HTTP handlers behind the admin
// observability surface: job inspection, queue status, and DLQ
// management.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/queue"
)

const defaultListLimit = 100

// JobsHandler serves job listing and lookup routes.
type JobsHandler struct {
	mgr *queue.Manager
}

// NewJobsHandler builds a JobsHandler over mgr.
func NewJobsHandler(mgr *queue.Manager) *JobsHandler {
	return &JobsHandler{mgr: mgr}
}

// List handles GET /api/v1/jobs?state=&limit=
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	state := job.State(r.URL.Query().Get("state"))
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.mgr.List(r.Context(), state, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// Get handles GET /api/v1/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.mgr.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
