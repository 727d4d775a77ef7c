package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, "Request timed out."},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), ErrCodeTimeout, "Request was canceled."},
		{"validation", fzerrors.ValidationError("limit must not be negative", nil), ErrCodeInvalidParams, "limit must not be negative"},
		{"field", fzerrors.New(fzerrors.ErrCodeFieldNotRegistered, "field User.bio is not searchable", nil).
			WithSuggestion("Register it with Searchable first"), ErrCodeFieldNotFound,
			"field User.bio is not searchable. Register it with Searchable first"},
		{"storage", fzerrors.StorageError("write failed", nil), ErrCodeStorage, "write failed"},
		{"busy", fzerrors.New(fzerrors.ErrCodeStorageBusy, "database is locked", nil), ErrCodeBusy, "database is locked"},
		{"config", fzerrors.ConfigError("bad backend", nil), ErrCodeInternalError, "bad backend"},
		{"plain", errors.New("boom"), ErrCodeInternalError, "Internal server error."},
		{"wrapped fuzz", fmt.Errorf("outer: %w", fzerrors.ValidationError("bad", nil)), ErrCodeInvalidParams, "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.msg, got.Message)
		})
	}
}

func TestMapError_NilAndPassthrough(t *testing.T) {
	assert.Nil(t, MapError(nil))

	orig := NewInvalidParamsError("query is required")
	assert.Same(t, orig, MapError(orig))
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("search_code")
	assert.Equal(t, "MCP error -32601: Tool 'search_code' not found.", err.Error())
}
