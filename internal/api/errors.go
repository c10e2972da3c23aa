package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"noteboard/internal/notes"
)

// maxBodyBytes caps request bodies; a reorder of a large board is still
// far below it.
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// serviceError maps notes sentinels onto status codes. Anything unexpected
// is logged and reported as 500.
func (h *Handlers) serviceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, notes.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "Note not found", err)
	case errors.Is(err, notes.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}
