package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeOpenFailure     ErrorType = "open_failure"
	ErrorTypeFieldExtraction ErrorType = "field_extraction"
	ErrorTypeExport          ErrorType = "export"
	ErrorTypeConfiguration   ErrorType = "configuration"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Image      string    `json:"image,omitempty"`
	Field      string    `json:"field,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Field != "" {
		prefix = fmt.Sprintf("%s[%s]", prefix, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewOpenFailure reports an image source that could not be opened or read.
func NewOpenFailure(image, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeOpenFailure,
		Message:    message,
		Image:      image,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewFieldError reports a single field whose derivation failed.
func NewFieldError(field, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeFieldExtraction,
		Message:    message,
		Field:      field,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewExportError reports a failed write of an output file.
func NewExportError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExport,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewConfigurationError reports malformed or missing configuration.
func NewConfigurationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error chain holds an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
