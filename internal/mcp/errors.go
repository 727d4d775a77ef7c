// Package mcp serves the fuzzy index over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
)

// MCP error codes returned by fuzzidx tools.
const (
	// ErrCodeStorage indicates the index could not be read or written.
	ErrCodeStorage = -32001

	// ErrCodeBusy indicates the index is held by another writer.
	ErrCodeBusy = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeFieldNotFound indicates the owner type or field is not searchable.
	ErrCodeFieldNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error to an MCPError. An error that already
// is an MCPError is returned unchanged.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var fe *fzerrors.FuzzError
	if errors.As(err, &fe) {
		return mapFuzzError(fe)
	}
	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

func mapFuzzError(fe *fzerrors.FuzzError) *MCPError {
	message := fe.Message
	if fe.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", fe.Message, fe.Suggestion)
	}

	if fe.Code == fzerrors.ErrCodeFieldNotRegistered {
		return &MCPError{Code: ErrCodeFieldNotFound, Message: message}
	}

	switch fe.Category {
	case fzerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case fzerrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	case fzerrors.CategoryContention:
		return &MCPError{Code: ErrCodeBusy, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an invalid parameters error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}
