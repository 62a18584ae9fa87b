package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Database errors
	CodeDatabase           ErrorCode = "DATABASE_ERROR"
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"

	// Provider errors
	CodeProviderAPI        ErrorCode = "PROVIDER_API_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Import errors
	CodeImport           ErrorCode = "IMPORT_ERROR"
	CodeImportUnexpected ErrorCode = "IMPORT_UNEXPECTED_ERROR"

	// Config errors
	CodeConfig        ErrorCode = "CONFIG_ERROR"
	CodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, CodeDatabase, message)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// ProviderAPIError creates the single terminal error kind surfaced by the
// provider adapters. It carries the provider name, the upstream HTTP status
// and an optional human-readable detail.
func ProviderAPIError(provider string, statusCode int, detail string, err error) *AppError {
	message := fmt.Sprintf("there was an error contacting the %s API", provider)
	if detail != "" {
		message += ": " + detail
	}
	return Wrap(err, CodeProviderAPI, message).
		WithContext("provider", provider).
		WithContext("status_code", statusCode)
}

// IsProviderAPIError reports whether err is a provider API error
func IsProviderAPIError(err error) bool {
	return GetErrorCode(err) == CodeProviderAPI
}

// ProviderName extracts the provider name from a provider API error
func ProviderName(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Context != nil {
		if name, ok := appErr.Context["provider"].(string); ok {
			return name
		}
	}
	return ""
}

// HTTPStatus extracts the upstream status code from a provider API error,
// returning 0 when none was recorded.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Context != nil {
		if code, ok := appErr.Context["status_code"].(int); ok {
			return code
		}
	}
	return 0
}

// ImportError creates a recoverable bulk-import error
func ImportError(message string) *AppError {
	return New(CodeImport, message)
}

// ImportUnexpectedError wraps a programming error raised mid-import,
// preserving which entry was being processed.
func ImportUnexpectedError(entry string, err error) *AppError {
	return Wrap(err, CodeImportUnexpected, fmt.Sprintf("error processing entry: %s", entry))
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeServiceTimeout, CodeServiceUnavailable, CodeRateLimited,
			CodeDatabaseConnection:
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeValidation || appErr.Code == CodeInvalidInput
	}
	return false
}
