package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an API error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Is implements the errors.Is interface for error matching.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	// Match by code if target has a code
	if t.Code != "" {
		return e.Code == t.Code
	}
	if t.Message != "" {
		return e.Message == t.Message
	}
	return false
}

// Common error codes
const (
	ErrCodeResyncRequired = "resync_required"
	ErrCodePatchFailed    = "patch_failed"
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeRenderFailed   = "render_failed"
	ErrCodeInternal       = "internal"
)

var (
	// ErrResyncRequired signals that the server holds no usable state for
	// the client, which must send an absolute payload.
	ErrResyncRequired = NewError(ErrCodeResyncRequired, "no cached scene for client")
	// ErrPatchFailed signals a patch that could not be applied to the
	// cached scene. It is not recoverable by resending.
	ErrPatchFailed = NewError(ErrCodePatchFailed, "patch could not be applied")
	// ErrInvalidPayload signals a malformed request.
	ErrInvalidPayload = NewError(ErrCodeInvalidPayload, "invalid payload")
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf is NewError with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// StatusCode returns the HTTP status conveying err.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case ErrCodeResyncRequired:
		return http.StatusGone
	case ErrCodePatchFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidPayload:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// CodeFor returns the error code conveyed by an HTTP status, the inverse of
// StatusCode.
func CodeFor(status int) string {
	switch status {
	case http.StatusGone:
		return ErrCodeResyncRequired
	case http.StatusUnprocessableEntity:
		return ErrCodePatchFailed
	case http.StatusBadRequest:
		return ErrCodeInvalidPayload
	}
	return ErrCodeInternal
}
