package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzError_Unwrap_PreservesCause(t *testing.T) {
	// Given: a storage failure
	cause := errors.New("disk I/O error")

	// When: wrapping it
	err := New(ErrCodeStorageWrite, "reindex User/1/name", cause)

	// Then: the cause stays reachable
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestFuzzError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FuzzError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeInvalidInput, "limit must not be negative", nil),
			expected: "[ERR_401_INVALID_INPUT] limit must not be negative",
		},
		{
			name:     "with cause",
			err:      New(ErrCodeStorageWrite, "write chunk 2", errors.New("database is locked")),
			expected: "[ERR_202_STORAGE_WRITE] write chunk 2: database is locked",
		},
		{
			name:     "wrapped error does not repeat itself",
			err:      Wrap(ErrCodeInternal, errors.New("boom")),
			expected: "[ERR_501_INTERNAL] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestFuzzError_Is_MatchesByCode(t *testing.T) {
	err := New(ErrCodeFieldNotRegistered, "User.email", nil)

	assert.True(t, errors.Is(err, New(ErrCodeFieldNotRegistered, "other", nil)))
	assert.False(t, errors.Is(err, New(ErrCodeInvalidInput, "other", nil)))
}

func TestFuzzError_FoundThroughWrapping(t *testing.T) {
	// Given: a FuzzError wrapped by fmt.Errorf
	err := fmt.Errorf("search: %w", New(ErrCodeStorageBusy, "database is locked", nil))

	// Then: helpers still see it
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrCodeStorageBusy, GetCode(err))
	assert.Equal(t, CategoryContention, GetCategory(err))
}

func TestFuzzError_WithDetailAndSuggestion(t *testing.T) {
	err := ValidationError("bad limit", nil).
		WithDetail("limit", "-1").
		WithSuggestion("use a positive limit")

	assert.Equal(t, "-1", err.Details["limit"])
	assert.Equal(t, "use a positive limit", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStorageRead, CategoryStorage},
		{ErrCodeLockHeld, CategoryContention},
		{ErrCodeInvalidQuery, CategoryValidation},
		{ErrCodeMatchFailed, CategoryInternal},
		{"short", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestSeverityAndRetryable(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeCorruptIndex, "x", nil).Severity)
	assert.True(t, IsFatal(New(ErrCodeStorageOpen, "x", nil)))

	busy := New(ErrCodeStorageBusy, "x", nil)
	assert.Equal(t, SeverityWarning, busy.Severity)
	assert.True(t, busy.Retryable)

	invalid := New(ErrCodeInvalidInput, "x", nil)
	assert.Equal(t, SeverityError, invalid.Severity)
	assert.False(t, invalid.Retryable)
}

func TestHelpers_PlainErrors(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.False(t, IsValidation(plain))
	assert.Equal(t, "", GetCode(plain))
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ValidationError("x", nil)))
	assert.True(t, IsValidation(New(ErrCodeInvalidQuery, "x", nil)))
	assert.False(t, IsValidation(StorageError("x", nil)))
}
