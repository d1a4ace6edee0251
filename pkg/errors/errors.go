// Package errors defines AppError, the typed failure every layer returns and
// the HTTP layer renders.
package errors

import (
	"errors"
	"net/http"
)

// AppError couples a machine readable code and an HTTP status with the
// message shown to API consumers. Internal holds the cause for logs only.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Sentinel failures. Services derive request specific variants with
// WithMessage; errors.Is still matches the sentinel they came from.
var (
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("UNAUTHORIZED", "Invalid credentials", http.StatusUnauthorized)
	ErrSessionExpired     = New("UNAUTHORIZED", "Session expired, please log in again", http.StatusUnauthorized)
	ErrForbidden          = New("FORBIDDEN", "You do not have permission to perform this action", http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict           = New("CONFLICT", "Resource already exists", http.StatusConflict)
	ErrRateLimit          = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Something went wrong, please try again later", http.StatusInternalServerError)
)

// New builds an AppError.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

func NewBadRequest(message string) *AppError   { return ErrBadRequest.WithMessage(message) }
func NewUnauthorized(message string) *AppError { return ErrUnauthorized.WithMessage(message) }
func NewForbidden(message string) *AppError    { return ErrForbidden.WithMessage(message) }
func NewNotFound(message string) *AppError     { return ErrNotFound.WithMessage(message) }
func NewConflict(message string) *AppError     { return ErrConflict.WithMessage(message) }

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is an AppError with the same code and status.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code && e.StatusCode == other.StatusCode
}

// WithMessage returns a copy carrying a different client message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Message = message
	return &cp
}

// WithInternal returns a copy that records err as its cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Internal = err
	return &cp
}

// FromError finds the AppError in err's chain; anything else becomes an
// internal server error wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// StatusCode reports the HTTP status err renders as; nil is 200.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status := FromError(err).StatusCode; status != 0 {
		return status
	}
	return http.StatusInternalServerError
}
