package errors

import (
	"errors"
	"fmt"
)

// Core error definitions for the authentication backends.
// These errors provide specific context for different failure scenarios.

// Credential-related errors
var (
	// ErrLoginNotFound indicates no credential exists for the requested login
	ErrLoginNotFound = errors.New("login not found")

	// ErrLoginExists indicates an attempt to create a credential for an existing login
	ErrLoginExists = errors.New("login already exists")

	// ErrInvalidLogin indicates the login does not meet format requirements
	ErrInvalidLogin = errors.New("invalid login")

	// ErrInvalidPassword indicates the password does not meet requirements
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidCredentials indicates the provided credentials are invalid
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Backend-related errors
var (
	// ErrReadOnly indicates a mutating operation was attempted on a read-only backend
	ErrReadOnly = errors.New("authentication backend is read-only")

	// ErrBackendUnavailable indicates credential operations are not available
	ErrBackendUnavailable = errors.New("authentication backend unavailable")

	// ErrConfigurationError indicates a configuration error
	ErrConfigurationError = errors.New("configuration error")
)

// Storage errors
var (
	// ErrRepositoryFailure indicates a storage operation failed
	ErrRepositoryFailure = errors.New("repository operation failed")

	// ErrDatabaseConnection indicates a database or directory connection failed
	ErrDatabaseConnection = errors.New("database connection failed")

	// ErrCacheMiss indicates a cache miss occurred
	ErrCacheMiss = errors.New("cache miss")
)

// Encryption errors
var (
	// ErrStrategyNotFound indicates the requested encryption strategy is unknown
	ErrStrategyNotFound = errors.New("encryption strategy not found")

	// ErrEncryptionFailed indicates the encryption strategy failed to encrypt
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrMalformedHash indicates a stored hash could not be parsed
	ErrMalformedHash = errors.New("malformed password hash")
)

// ErrorCode represents standardized error codes for callers
type ErrorCode string

const (
	CodeLoginNotFound      ErrorCode = "LOGIN_NOT_FOUND"
	CodeLoginExists        ErrorCode = "LOGIN_EXISTS"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	CodeReadOnly           ErrorCode = "READ_ONLY"
	CodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	CodeStrategyNotFound   ErrorCode = "STRATEGY_NOT_FOUND"
	CodeEncryptionFailed   ErrorCode = "ENCRYPTION_FAILED"
	CodeConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	CodeInternalError      ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRepositoryFailure  ErrorCode = "REPOSITORY_FAILURE"
)

// AppError represents a structured application error with context
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code and message
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewAppErrorWithDetails creates a new AppError with additional details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewLoginNotFoundError creates a login not found error
func NewLoginNotFoundError(login string) *AppError {
	return &AppError{
		Code:    CodeLoginNotFound,
		Message: "Login not found",
		Details: fmt.Sprintf("Login: %s", login),
		Cause:   ErrLoginNotFound,
	}
}

// NewLoginExistsError creates a duplicate login error
func NewLoginExistsError(login string) *AppError {
	return &AppError{
		Code:    CodeLoginExists,
		Message: "Login already exists",
		Details: fmt.Sprintf("Login: %s", login),
		Cause:   ErrLoginExists,
	}
}

// NewReadOnlyError creates an error for a mutating call on a read-only backend
func NewReadOnlyError(operation string) *AppError {
	return &AppError{
		Code:    CodeReadOnly,
		Message: "Authentication backend is read-only",
		Details: fmt.Sprintf("Operation: %s", operation),
		Cause:   ErrReadOnly,
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, reason string) *AppError {
	return NewAppErrorWithDetails(CodeValidationFailed, "Validation failed", fmt.Sprintf("Field: %s, Reason: %s", field, reason))
}

// NewStrategyNotFoundError creates an unknown encryption strategy error
func NewStrategyNotFoundError(name string) *AppError {
	return &AppError{
		Code:    CodeStrategyNotFound,
		Message: "Encryption strategy not found",
		Details: fmt.Sprintf("Strategy: %s", name),
		Cause:   ErrStrategyNotFound,
	}
}

// NewConfigurationError creates a configuration error for a missing or invalid key
func NewConfigurationError(key, reason string) *AppError {
	return &AppError{
		Code:    CodeConfigurationError,
		Message: "Invalid configuration",
		Details: fmt.Sprintf("Key: %s, Reason: %s", key, reason),
		Cause:   ErrConfigurationError,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}
