// Package errors defines the application error taxonomy and its HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type classifies an application error.
type Type string

const (
	TypeValidation   Type = "VALIDATION"
	TypeUnauthorized Type = "UNAUTHORIZED"
	TypeNotFound     Type = "NOT_FOUND"
	TypeTimeout      Type = "TIMEOUT"
	TypeExternal     Type = "EXTERNAL"
	TypeInternal     Type = "INTERNAL"
)

// AppError carries a typed error with an optional pipeline step name for
// diagnostics. Step is the orchestrator or ingestion step that failed.
type AppError struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error { return e.Cause }

// WithStep annotates the error with the failing step name.
func (e *AppError) WithStep(step string) *AppError {
	e.Step = step
	return e
}

// WithCause wraps an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// HTTPStatus maps the error type to an HTTP status code.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeNotFound:
		return http.StatusNotFound
	case TypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidation returns a 400-class error.
func NewValidation(msg string) *AppError {
	return &AppError{Type: TypeValidation, Message: msg}
}

// NewUnauthorized returns a 401-class error.
func NewUnauthorized(msg string) *AppError {
	return &AppError{Type: TypeUnauthorized, Message: msg}
}

// NewNotFound returns a 404-class error.
func NewNotFound(msg string) *AppError {
	return &AppError{Type: TypeNotFound, Message: msg}
}

// NewTimeout returns a 504-class error for an expired external-call deadline.
func NewTimeout(msg string) *AppError {
	return &AppError{Type: TypeTimeout, Message: msg}
}

// NewExternal returns a 500-class error for an embedding/model/storage failure.
func NewExternal(msg string) *AppError {
	return &AppError{Type: TypeExternal, Message: msg}
}

// NewInternal returns a 500-class error.
func NewInternal(msg string) *AppError {
	return &AppError{Type: TypeInternal, Message: msg}
}

// AsAppError extracts an AppError from err, or wraps err as internal.
func AsAppError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return &AppError{Type: TypeInternal, Message: err.Error(), Cause: err}
}
