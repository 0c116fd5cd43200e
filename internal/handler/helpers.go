package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidebrook/choretally/internal/points"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError translates the typed domain errors into HTTP statuses.
// Anything unclassified is a 500 with a generic body; the detail goes to the
// server log only.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, points.ErrValidation),
		errors.Is(err, points.ErrUndoWindowExpired),
		errors.Is(err, points.ErrInsufficientBalance):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, points.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, points.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, points.ErrAlreadyCompleted),
		errors.Is(err, points.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, points.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflicting update, try again"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
