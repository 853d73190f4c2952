// Package apperrors defines the domain error taxonomy and its mapping to
// HTTP responses. Every internal error kind maps to exactly one status code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when a report, user or attachment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when the bearer token is absent, invalid or expired.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when an authenticated caller lacks permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned on login mismatch. The message is
	// identical whether the email is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidTransition is returned for a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrReportClosed is returned when appending to the conversation of a closed report.
	ErrReportClosed = errors.New("report is closed")
	// ErrPayloadTooLarge is returned when an upload exceeds the attachment size cap.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrStoreUnavailable wraps transient storage failures.
	ErrStoreUnavailable = errors.New("storage unavailable")
)

// ValidationError lists the offending input fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Validation builds a ValidationError for the given fields.
func Validation(fields ...string) error {
	return &ValidationError{Fields: fields}
}

// StoreFailure wraps an infrastructure error so it surfaces as
// ErrStoreUnavailable at the boundary while keeping the cause in the chain.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// ErrorResponse is the JSON body for every error response: a stable
// machine-readable code plus a human-readable message. No internal
// identifiers or stack traces leak through it.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError pairs a domain error with its HTTP representation.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ToErrorResponse converts an HTTPError to its JSON body.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}

// MapToHTTP maps a domain error to its HTTP error. The mapping is total:
// anything unrecognized is a 500 with a generic message.
func MapToHTTP(err error) *HTTPError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &HTTPError{http.StatusBadRequest, ve.Error(), "VALIDATION_FAILED"}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &HTTPError{http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND"}
	case errors.Is(err, ErrUnauthenticated):
		return &HTTPError{http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED"}
	case errors.Is(err, ErrForbidden):
		return &HTTPError{http.StatusForbidden, ErrForbidden.Error(), "FORBIDDEN"}
	case errors.Is(err, ErrInvalidCredentials):
		return &HTTPError{http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS"}
	case errors.Is(err, ErrDuplicateEmail):
		return &HTTPError{http.StatusConflict, ErrDuplicateEmail.Error(), "DUPLICATE_EMAIL"}
	case errors.Is(err, ErrInvalidTransition):
		return &HTTPError{http.StatusConflict, ErrInvalidTransition.Error(), "INVALID_TRANSITION"}
	case errors.Is(err, ErrReportClosed):
		return &HTTPError{http.StatusConflict, ErrReportClosed.Error(), "REPORT_CLOSED"}
	case errors.Is(err, ErrPayloadTooLarge):
		return &HTTPError{http.StatusRequestEntityTooLarge, ErrPayloadTooLarge.Error(), "PAYLOAD_TOO_LARGE"}
	case errors.Is(err, ErrStoreUnavailable):
		return &HTTPError{http.StatusInternalServerError, ErrStoreUnavailable.Error(), "STORE_UNAVAILABLE"}
	default:
		return &HTTPError{http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR"}
	}
}
