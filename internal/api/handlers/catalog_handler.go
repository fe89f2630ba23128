package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SeatCache is the cached side of the seat lookup.
type SeatCache interface {
	Invalidate(courseID string)
}

type CatalogHandler struct {
	seats SeatCache
	log   *slog.Logger
}

func NewCatalogHandler(seats SeatCache, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{seats: seats, log: logger}
}

// RefreshSeats handles DELETE /catalog/courses/{courseID}/seats. The next
// lookup of the course goes back to the catalog API.
func (h *CatalogHandler) RefreshSeats(w http.ResponseWriter, r *http.Request) {
	courseID := strings.TrimSpace(chi.URLParam(r, "courseID"))
	if courseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid course id"})
		return
	}
	h.seats.Invalidate(courseID)
	h.log.Info("seat offerings invalidated", "course_id", courseID)
	w.WriteHeader(http.StatusNoContent)
}
