package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gasflow/queue"
	"gasflow/trip"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func urlID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	return id, err == nil && id > 0
}

// serviceError maps the queue and trip sentinel errors to HTTP codes.
// Precondition violations are conflicts: the request was understood but
// the state does not admit it.
func (h *Handlers) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNoActiveWindow),
		errors.Is(err, queue.ErrDuplicateToken),
		errors.Is(err, queue.ErrNotWaiting),
		errors.Is(err, queue.ErrNotApproved),
		errors.Is(err, queue.ErrStationMismatch),
		errors.Is(err, queue.ErrInvalidState),
		errors.Is(err, trip.ErrTerminal),
		errors.Is(err, trip.ErrNotReady):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, trip.ErrBadMeta):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, trip.ErrNotFound):
		h.jsonError(w, "not found", http.StatusNotFound)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
