package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// With helpers, handlers stay short and consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "prompt not found with id abc123"}
//
// Validation errors add "field"; malformed model output adds "detail" with
// the raw reply.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`            // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`          // Human-readable description
	Field   string `json:"field,omitempty"`  // Field that failed validation
	Detail  string `json:"detail,omitempty"` // Raw model output on a 502
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// Only the error CLASS picks the status. Kinds (ErrTokenRevoked,
// ErrMissingRequiredField, ...) are for logs and tests.
//
//	unauthorized          → 401 (uniform body, see auth.WriteUnauthorized)
//	forbidden             → 403
//	not found             → 404
//	validation            → 400
//	conflict              → 409
//	service unavailable   → 503
//	malformed model output→ 502
//	generation failed     → 500 with the cause text
//	anything else         → 500 "An internal error occurred"
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperror.ErrUnauthorized) {
		auth.WriteUnauthorized(w, err)
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrServiceUnavailable):
			status = http.StatusServiceUnavailable
			errorType = "service_unavailable"
		case errors.Is(err, apperror.ErrMalformedModelOutput):
			status = http.StatusBadGateway
			errorType = "malformed_model_output"
		case errors.Is(err, apperror.ErrGenerationFailed):
			errorType = "generation_failed"
		default:
			// An AppError of no known class: treat it like any other
			// unexpected error and keep its message private.
			writeInternalError(w)
			return
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
			Detail:  appErr.Detail,
		})
		return
	}

	// NEVER expose internal error details to the client: the raw message
	// might contain SQL, file paths or provider responses.
	writeInternalError(w)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst. A body that is not valid
// JSON becomes a 400 validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
