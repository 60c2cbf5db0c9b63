package errors

import (
	"errors"
	"fmt"
)

// MediaError is the structured error type for MediaLens.
// It carries enough context (code, category, phase, record id) for the
// coordinator to surface failures without re-wrapping at every layer.
type MediaError struct {
	// Code is the unique error code (e.g., "ERR_201_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Input, Store, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *MediaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MediaError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with MediaError.
func (e *MediaError) Is(target error) bool {
	if t, ok := target.(*MediaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *MediaError) WithDetail(key, value string) *MediaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new MediaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *MediaError {
	return &MediaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MediaError from an existing error.
// The error's message becomes the MediaError message.
func Wrap(code string, err error) *MediaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates an error for an unknown path or id.
func NotFound(path string) *MediaError {
	return New(ErrCodeNotFound, fmt.Sprintf("media file not found: %s", path), nil)
}

// AlreadyProcessing creates an error for per-id lock contention when the
// caller is configured to reject rather than wait.
func AlreadyProcessing(id string) *MediaError {
	return New(ErrCodeAlreadyProcessing, fmt.Sprintf("record %s is already being processed", id), nil)
}

// StoreError wraps a persistence-layer failure.
func StoreError(message string, cause error) *MediaError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// WriteError wraps a failed store mutation.
func WriteError(message string, cause error) *MediaError {
	return New(ErrCodeWriteFailed, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MediaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MediaError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a MediaError anywhere in the chain.
// Returns empty string if no MediaError is present.
func GetCode(err error) string {
	var me *MediaError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}
