package handlers

import (
	"net/http"

	"github.com/maumercado/queuectl/internal/queue"
)

// StatusHandler serves the queue health summary route.
type StatusHandler struct {
	mgr *queue.Manager
}

// NewStatusHandler builds a StatusHandler over mgr.
func NewStatusHandler(mgr *queue.Manager) *StatusHandler {
	return &StatusHandler{mgr: mgr}
}

// Get handles GET /api/v1/status
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.mgr.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Health writes a liveness response independent of store state. The admin
// server does not route it: GET /health is answered by chi's Heartbeat
// middleware.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
