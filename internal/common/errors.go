package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies failures surfaced to callers
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeUnsupported ErrorType = "UNSUPPORTED"
	ErrorTypeExternal    ErrorType = "EXTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// Sentinel errors shared across packages
var (
	// ErrModelUnavailable means the model could not be reached or answered nothing usable
	// at the transport level. A reply that is merely unhelpful text is not this error.
	ErrModelUnavailable  = errors.New("generative model unavailable")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrReportNotFound    = errors.New("report does not exist")
	ErrConversionFailed  = errors.New("document conversion failed")
)

// AppError is an error carrying a type used for HTTP status mapping
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message, Err: err}
}

// NewUnsupportedError creates a new unsupported format error
func NewUnsupportedError(message string) *AppError {
	return &AppError{Type: ErrorTypeUnsupported, Message: message, Err: ErrUnsupportedFormat}
}

// NewExternalError wraps a failure from an external collaborator
func NewExternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeExternal, Message: message, Err: err}
}

// NewUnavailableError wraps a model availability failure
func NewUnavailableError(message string, err error) *AppError {
	if err == nil {
		err = ErrModelUnavailable
	} else if !errors.Is(err, ErrModelUnavailable) {
		err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return &AppError{Type: ErrorTypeUnavailable, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// ErrorTypeOf returns the type of the first AppError in the chain.
// Bare sentinels are classified as well; anything else is internal.
func ErrorTypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}

	switch {
	case errors.Is(err, ErrModelUnavailable):
		return ErrorTypeUnavailable
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorTypeUnsupported
	case errors.Is(err, ErrReportNotFound):
		return ErrorTypeNotFound
	default:
		return ErrorTypeInternal
	}
}

// HTTPStatus maps an error to the status code handlers respond with
func HTTPStatus(err error) int {
	switch ErrorTypeOf(err) {
	case ErrorTypeValidation, ErrorTypeUnsupported:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
