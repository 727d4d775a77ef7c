// Package errors provides structured error handling for fuzzidx.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (index files, database, sources)
//   - 3XX: Contention errors (busy database, held locks)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index storage and source read errors.
	CategoryStorage Category = "STORAGE"
	// CategoryContention indicates a resource held by someone else.
	CategoryContention Category = "CONTENTION"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Storage errors (200-299)
	ErrCodeStorageOpen  = "ERR_201_STORAGE_OPEN"
	ErrCodeStorageWrite = "ERR_202_STORAGE_WRITE"
	ErrCodeStorageRead  = "ERR_203_STORAGE_READ"
	ErrCodeSourceRead   = "ERR_204_SOURCE_READ"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"

	// Contention errors (300-399)
	ErrCodeStorageBusy = "ERR_301_STORAGE_BUSY"
	ErrCodeLockHeld    = "ERR_302_LOCK_HELD"

	// Validation errors (400-499)
	ErrCodeInvalidInput       = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery       = "ERR_402_INVALID_QUERY"
	ErrCodeFieldNotRegistered = "ERR_403_FIELD_NOT_REGISTERED"
	ErrCodeAlreadyInitialized = "ERR_404_ALREADY_INITIALIZED"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeReindexFailed = "ERR_502_REINDEX_FAILED"
	ErrCodeMatchFailed   = "ERR_503_MATCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryContention
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStorageOpen:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageBusy, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
