package handler

// RESPONSE HELPERS:
// Two kinds of responses leave this package: HTML pages for the browser and
// small JSON documents for probes and scripts (/healthz, /api/me). Both map
// errors the same way, through statusFor, so a "not found" is a 404 whether
// it ends up in a page or in JSON.
//
// CONSISTENT ERROR FORMAT:
// Every JSON error has the same shape:
//   {"error": "not_found", "message": "Lesson not found"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/skillswap/internal/apperror"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status go out before the body; nothing can be changed after
// Encode starts writing.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code and sends it as JSON.
// Errors without an AppError in their chain are reported as a generic 500:
// raw messages may carry backend URLs or internal details.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := statusFor(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: publicMessage(err),
	})
}

// statusFor is the one place domain errors become HTTP.
//
// errors.Is walks the whole chain, so this works for errors wrapped by the
// service ("service: completing lesson 3: ...") and for errors decoded from
// the backend's wire codes alike.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrInsufficientCredits):
		return http.StatusConflict, "insufficient_credits"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func publicMessage(err error) string {
	return apperror.Message(err, "An internal error occurred")
}
