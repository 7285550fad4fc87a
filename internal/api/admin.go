package api

import (
	"net/http"
	"strconv"

	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
)

// AdminStats handles GET /api/admin/stats.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	snap := h.metrics.Snapshot(r.URL.Query().Get("window"))
	httputil.JSON(w, http.StatusOK, map[string]any{
		"stats": snap,
		"tools": h.toolAvailability(),
	})
}

// AdminLogs handles GET /api/admin/logs: the newest rows from the
// in-process log ring, optionally filtered by minimum level.
func (h *Handler) AdminLogs(w http.ResponseWriter, r *http.Request) {
	tail := 200
	if raw := r.URL.Query().Get("tail"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			tail = n
		}
	}
	if tail < 1 {
		tail = 1
	}
	if tail > 5000 {
		tail = 5000
	}

	rows := h.tail.Tail(tail, r.URL.Query().Get("level"))
	httputil.JSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}
