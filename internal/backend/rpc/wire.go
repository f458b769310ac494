// Package rpc carries the backend.Client interface over HTTP.
//
// WIRE FORMAT:
// Every call is "POST {base}/rpc/{method}" with a JSON object of named
// arguments. The response body is always an envelope:
//
//	{"ok": <result>}                                   on success (HTTP 200)
//	{"err": {"code": "not_found", "message": "..."}}   on failure (4xx/5xx)
//
// Void methods answer {} and "not found" optionals answer {"ok": null}.
// Numbers are plain JSON integers (encoding/json round-trips uint64 exactly)
// and video bytes are base64 strings, which is encoding/json's default for []byte.
//
// The caller identity is a short-lived JWT in "Authorization: Bearer ...",
// signed with the secret the frontend and backend share. Calls without the
// header are anonymous.
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/model"
)

// MaxRequestBytes bounds an RPC request body: a 100 MB video grows by a
// third when base64-encoded, plus the rest of the arguments.
const MaxRequestBytes = 140 << 20

type envelope struct {
	OK  json.RawMessage `json:"ok,omitempty"`
	Err *wireError      `json:"err,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Argument objects, one per call shape.
type (
	idArgs struct {
		ID uint64 `json:"id"`
	}
	creatorArgs struct {
		Creator model.Identity `json:"creator"`
	}
	userArgs struct {
		User model.Identity `json:"user"`
	}
	createLessonArgs struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Video       []byte `json:"video"`
		CreditCost  uint64 `json:"creditCost"`
	}
	profileArgs struct {
		Profile model.UserProfile `json:"profile"`
	}
	assignRoleArgs struct {
		User model.Identity `json:"user"`
		Role model.UserRole `json:"role"`
	}
)

// errorCodes maps each sentinel to its wire code and HTTP status.
// The order matters only for errors that wrap more than one sentinel:
// the first match wins.
var errorCodes = []struct {
	sentinel error
	code     string
	status   int
}{
	{apperror.ErrValidation, "validation_error", http.StatusBadRequest},
	{apperror.ErrNotFound, "not_found", http.StatusNotFound},
	{apperror.ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{apperror.ErrForbidden, "forbidden", http.StatusForbidden},
	{apperror.ErrConflict, "conflict", http.StatusConflict},
	{apperror.ErrInsufficientCredits, "insufficient_credits", http.StatusConflict},
	{apperror.ErrUnavailable, "unavailable", http.StatusServiceUnavailable},
}

// encodeError turns any error into a wire error and a status.
// Errors outside the taxonomy become a generic internal error so SQL text
// or file paths never leave the backend.
func encodeError(err error) (wireError, int) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, ec := range errorCodes {
			if errors.Is(err, ec.sentinel) {
				return wireError{Code: ec.code, Message: appErr.Message}, ec.status
			}
		}
	}
	return wireError{Code: "internal_error", Message: "An internal error occurred"}, http.StatusInternalServerError
}

// decodeError rebuilds an *apperror.AppError from a wire error so callers
// can keep using errors.Is against the shared sentinels.
func decodeError(we wireError) error {
	for _, ec := range errorCodes {
		if ec.code == we.Code {
			return &apperror.AppError{Err: ec.sentinel, Message: we.Message}
		}
	}
	return &apperror.AppError{Err: errRemoteInternal, Message: we.Message}
}

// errRemoteInternal marks backend failures outside the shared taxonomy.
var errRemoteInternal = errors.New("rpc: remote internal error")
