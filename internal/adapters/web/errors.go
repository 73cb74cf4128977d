package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"billing-backend/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps engine error types onto HTTP statuses. Partial
// stock application is surfaced with its own code so callers can tell a
// degraded outcome from a clean failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *core.InputError
	var notFound *core.NotFoundError
	var conflict *core.ConflictError
	var partial *core.PartialApplicationError

	switch {
	case errors.As(err, &inputErr):
		writeError(w, r, inputErr.Error(), "INVALID_INPUT", http.StatusBadRequest)
	case errors.As(err, &notFound):
		writeError(w, r, notFound.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &conflict):
		writeError(w, r, conflict.Error(), "CONFLICT", http.StatusConflict)
	case errors.As(err, &partial):
		writeError(w, r, partial.Error(), "PARTIAL_APPLICATION", http.StatusInternalServerError)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
