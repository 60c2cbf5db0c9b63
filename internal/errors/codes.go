// Package errors provides structured error handling for MediaLens.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Input errors (missing or unreadable media)
//   - 3XX: Store errors (persistence layer)
//   - 4XX: Inference errors (collaborator failures, timeouts)
//   - 5XX: Concurrency errors (admission control)
//   - 9XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryInput indicates missing or unreadable input files.
	CategoryInput Category = "INPUT"
	// CategoryStore indicates persistence-layer errors.
	CategoryStore Category = "STORE"
	// CategoryInference indicates collaborator inference errors.
	CategoryInference Category = "INFERENCE"
	// CategoryConcurrency indicates admission-control errors.
	CategoryConcurrency Category = "CONCURRENCY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Input errors (200-299)
	ErrCodeNotFound          = "ERR_201_NOT_FOUND"
	ErrCodeCorruptInput      = "ERR_202_CORRUPT_INPUT"
	ErrCodeUnsupportedFormat = "ERR_203_UNSUPPORTED_FORMAT"

	// Store errors (300-399)
	ErrCodeStoreUnavailable  = "ERR_301_STORE_UNAVAILABLE"
	ErrCodeWriteFailed       = "ERR_302_WRITE_FAILED"
	ErrCodeDimensionMismatch = "ERR_303_DIMENSION_MISMATCH"

	// Inference errors (400-499)
	ErrCodeInferenceFailed   = "ERR_401_INFERENCE_FAILED"
	ErrCodeTimeout           = "ERR_402_TIMEOUT"
	ErrCodeResourceExhausted = "ERR_403_RESOURCE_EXHAUSTED"

	// Concurrency errors (500-599)
	ErrCodeAlreadyProcessing = "ERR_501_ALREADY_PROCESSING"

	// Internal errors (900-999)
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryInput
	case '3':
		return CategoryStore
	case '4':
		return CategoryInference
	case '5':
		return CategoryConcurrency
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnavailable, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Inference failures and timeouts leave the fingerprint untouched, so a
// subsequent submit retries them.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeInferenceFailed, ErrCodeTimeout, ErrCodeResourceExhausted, ErrCodeAlreadyProcessing:
		return true
	default:
		return false
	}
}
