package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a client-visible failure carrying an HTTP status and a
// machine-readable code. Anything crossing the service boundary without a
// status is wrapped as Internal before it reaches a client.
type Error struct {
	Status  int                    `json:"statusCode"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, "VALIDATION_FAILED", message)
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, "AUTH_REQUIRED", message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, "CONFLICT", message)
}

// Locked signals a temporary, time-bound denial (account lockout), distinct
// from a credential problem.
func Locked(message string) *Error {
	return New(http.StatusLocked, "ACCOUNT_LOCKED", message)
}

func RateLimit(message string, retryAfter int) *Error {
	e := New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message)
	if retryAfter > 0 {
		e.Details = map[string]interface{}{"retryAfter": retryAfter}
	}
	return e
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// From extracts an *Error from err, wrapping uncoded errors as Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error")
}

// Is reports whether err is an *Error with the given status.
func Is(err error, status int) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Status == status
}
