package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
)

// DLQHandler serves dead-letter-queue listing and retry routes.
type DLQHandler struct {
	mgr *queue.Manager
}

// NewDLQHandler builds a DLQHandler over mgr.
func NewDLQHandler(mgr *queue.Manager) *DLQHandler {
	return &DLQHandler{mgr: mgr}
}

// List handles GET /api/v1/dlq?limit=
func (h *DLQHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	jobs, err := h.mgr.ListDLQ(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// Retry handles POST /api/v1/dlq/{id}/retry — requires a valid bearer
// token, enforced by middleware.RequireBearer wrapping this route.
func (h *DLQHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.mgr.RetryFromDLQ(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		if errors.Is(err, store.ErrInvalidState) {
			writeError(w, http.StatusConflict, "job is not in the dead letter queue")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "requeued"})
}
