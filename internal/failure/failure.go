// Package failure defines the error kinds shared by the API server and the
// conversation client. Errors are wrapped under one of the sentinels below so
// callers can branch with errors.Is regardless of which layer produced them.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks a request with missing or malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown therapist identifier.
	ErrNotFound = errors.New("not found")
	// ErrUpstream marks a transcription, completion or storage provider failure.
	ErrUpstream = errors.New("upstream failure")
	// ErrPermission marks a microphone that could not be acquired.
	ErrPermission = errors.New("microphone unavailable")
	// ErrDuration marks a recording shorter than the configured minimum.
	ErrDuration = errors.New("recording too short")
)

// Validation returns an ErrValidation carrying a formatted detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound carrying a formatted detail.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Upstream wraps cause under ErrUpstream. cause may be nil.
func Upstream(cause error, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrUpstream, detail)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, detail, cause)
}

// Permission wraps cause under ErrPermission unless it already carries it.
func Permission(cause error) error {
	if cause == nil || errors.Is(cause, ErrPermission) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrPermission, cause)
}

// HTTPStatus maps an error kind to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus converts an API status code back into an error kind. It is the
// inverse of HTTPStatus for the client side; any other non-2xx status is
// treated as an upstream failure.
func FromStatus(status int, message string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest:
		return Validation("%s", message)
	case status == http.StatusNotFound:
		return NotFound("%s", message)
	default:
		return Upstream(nil, "status %d: %s", status, message)
	}
}
