package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. The HTTP boundary maps kinds to
// status codes in exactly one place (pkg/httputil).
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindTooLarge          Kind = "TOO_LARGE"
	KindSignedDocument    Kind = "SIGNED_DOCUMENT"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindToolTimeout       Kind = "TOOL_TIMEOUT"
	KindToolFailure       Kind = "TOOL_FAILURE"
	KindDependencyMissing Kind = "DEPENDENCY_MISSING"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Standard error types
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTooLarge          = errors.New("payload too large")
	ErrSignedDocument    = errors.New("digitally signed document")
	ErrRateLimited       = errors.New("rate limited")
	ErrToolTimeout       = errors.New("external tool timeout")
	ErrToolFailure       = errors.New("external tool failure")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("resource not found")
	ErrInternal          = errors.New("internal server error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Kind       Kind              `json:"code"`
	Message    string            `json:"message"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Wrap attaches a cause to an AppError without changing its kind.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// Common error constructors

func InvalidInput(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Kind:       KindInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:        ErrTooLarge,
		Kind:       KindTooLarge,
		Message:    message,
		StatusCode: http.StatusRequestEntityTooLarge,
	}
}

func SignedDocument(message string) *AppError {
	return &AppError{
		Err:        ErrSignedDocument,
		Kind:       KindSignedDocument,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func RateLimited(message string) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Kind:       KindRateLimited,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func ToolTimeout(tool string) *AppError {
	return &AppError{
		Err:        ErrToolTimeout,
		Kind:       KindToolTimeout,
		Message:    fmt.Sprintf("%s excedeu o tempo limite de processamento", tool),
		StatusCode: http.StatusGatewayTimeout,
	}
}

func ToolFailure(tool string, message string) *AppError {
	return &AppError{
		Err:        ErrToolFailure,
		Kind:       KindToolFailure,
		Message:    fmt.Sprintf("%s: %s", tool, message),
		StatusCode: http.StatusInternalServerError,
	}
}

func DependencyMissing(message string) *AppError {
	return &AppError{
		Err:        ErrDependencyMissing,
		Kind:       KindDependencyMissing,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Kind:       KindUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s não encontrado", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Kind:       KindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Validation builds an InvalidInput error carrying per-field details.
func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Kind:       KindInvalidInput,
		Message:    "dados inválidos",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
