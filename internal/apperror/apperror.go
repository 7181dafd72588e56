// Package apperror defines the application's error taxonomy.
//
// ERROR CLASSES AND KINDS:
// Every error the API returns belongs to a CLASS (unauthorized, forbidden,
// not found, validation, conflict, generation). Some classes are split into
// finer KINDS, e.g. ErrTokenRevoked is a kind of ErrUnauthorized.
//
// Kinds wrap their class with %w, so both checks work on the same error:
//
//	errors.Is(err, apperror.ErrTokenRevoked)  // the precise reason
//	errors.Is(err, apperror.ErrUnauthorized)  // the HTTP-level outcome
//
// Handlers only look at classes when choosing a status code; tests and logs
// can look at kinds.
package apperror

import (
	"errors"
	"fmt"
)

// Error classes.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrGeneration   = errors.New("generation error")
)

// Authentication kinds.
var (
	ErrTokenMissing       = fmt.Errorf("token missing: %w", ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("token invalid: %w", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("token expired: %w", ErrUnauthorized)
	ErrTokenRevoked       = fmt.Errorf("token revoked: %w", ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrMalformedToken     = fmt.Errorf("malformed token: %w", ErrUnauthorized)
	ErrMissingIdentifier  = fmt.Errorf("token has no identifier: %w", ErrUnauthorized)
)

// Validation kinds.
var (
	ErrMissingRequiredField = fmt.Errorf("missing required field: %w", ErrValidation)
	ErrInvalidVoteValue     = fmt.Errorf("invalid vote value: %w", ErrValidation)
)

// Generation kinds.
var (
	ErrServiceUnavailable   = fmt.Errorf("generative service unavailable: %w", ErrGeneration)
	ErrMalformedModelOutput = fmt.Errorf("malformed model output: %w", ErrGeneration)
	ErrGenerationFailed     = fmt.Errorf("generation failed: %w", ErrGeneration)
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Detail  string // Optional: diagnostic payload (e.g. raw model output)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// MissingField reports a required field that was absent or blank.
func MissingField(field string) *AppError {
	return &AppError{
		Err:     ErrMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

// InvalidVote reports a vote value outside {-1, 0, 1}.
func InvalidVote(value int) *AppError {
	return &AppError{
		Err:     ErrInvalidVoteValue,
		Message: fmt.Sprintf("vote must be -1, 0 or 1, got %d", value),
		Field:   "vote",
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized wraps one of the authentication kinds (ErrTokenMissing,
// ErrTokenRevoked, ...). HTTP handlers map every kind to 401.
func Unauthorized(kind error, message string) *AppError {
	return &AppError{
		Err:     kind,
		Message: message,
	}
}

// ServiceUnavailable reports that the generative collaborator is not configured.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Err:     ErrServiceUnavailable,
		Message: message,
	}
}

// MalformedModelOutput reports model output that could not be parsed.
// The raw text is kept in Detail so the caller can diagnose the response.
func MalformedModelOutput(raw string) *AppError {
	return &AppError{
		Err:     ErrMalformedModelOutput,
		Message: "model returned output that is not a JSON object",
		Detail:  raw,
	}
}

// GenerationFailed reports any other failure of a generation call.
// The cause's text becomes the message; the cause itself is not wrapped so
// storage or transport internals never leak through errors.As.
func GenerationFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrGenerationFailed,
		Message: cause.Error(),
	}
}
