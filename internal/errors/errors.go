package errors

import (
	"errors"
	"fmt"
)

// FuzzError is the structured error type for fuzzidx.
// It carries a stable code plus context for logs and user output.
type FuzzError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_INPUT").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, reachable through errors.Is and errors.As.
	Cause error

	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FuzzError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FuzzError) Unwrap() error {
	return e.Cause
}

// Is matches another FuzzError by code.
func (e *FuzzError) Is(target error) bool {
	if t, ok := target.(*FuzzError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *FuzzError) WithDetail(key, value string) *FuzzError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *FuzzError) WithSuggestion(suggestion string) *FuzzError {
	e.Suggestion = suggestion
	return e
}

// New creates a FuzzError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *FuzzError {
	return &FuzzError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a FuzzError without a cause from a format string.
func Newf(code string, format string, args ...any) *FuzzError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a FuzzError from an existing error.
// Returns nil for a nil err.
func Wrap(code string, err error) *FuzzError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FuzzError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a storage write error.
func StorageError(message string, cause error) *FuzzError {
	return New(ErrCodeStorageWrite, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *FuzzError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FuzzError {
	return New(ErrCodeInternal, message, cause)
}

// as finds the outermost FuzzError in err's chain.
func as(err error) (*FuzzError, bool) {
	var fe *FuzzError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable FuzzError.
func IsRetryable(err error) bool {
	fe, ok := as(err)
	return ok && fe.Retryable
}

// IsFatal reports whether err carries a fatal FuzzError.
func IsFatal(err error) bool {
	fe, ok := as(err)
	return ok && fe.Severity == SeverityFatal
}

// IsValidation reports whether err is an invalid-argument error.
func IsValidation(err error) bool {
	fe, ok := as(err)
	return ok && fe.Category == CategoryValidation
}

// GetCode extracts the error code. Returns "" if err has no FuzzError.
func GetCode(err error) string {
	if fe, ok := as(err); ok {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category. Returns "" if err has no FuzzError.
func GetCategory(err error) Category {
	if fe, ok := as(err); ok {
		return fe.Category
	}
	return ""
}
