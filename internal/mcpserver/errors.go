package mcpserver

import (
	"errors"
	"fmt"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

// MCP/JSON-RPC error codes for this server.
const (
	ErrCodeUnknownPackage     = -32001
	ErrCodeContextMissing     = -32002
	ErrCodeProviderUnavailable = -32003

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrNotServing is returned for requests that arrive outside the connection
// state machine's Serving state.
var ErrNotServing = errors.New("server is not accepting requests in its current state")

// MCPError is a JSON-RPC-shaped error carrying a stable code and a
// human-readable message. Available and Similar surface UnknownPackage's
// two suggestion lists as structured JSON arrays, omitted from the wire
// payload (via omitempty) for every other error kind.
type MCPError struct {
	Code      int      `json:"code"`
	Message   string   `json:"message"`
	Available []string `json:"available,omitempty"`
	Similar   []string `json:"similar,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error into an MCPError, translating
// DocError kinds into stable MCP error codes and surfacing a package's
// suggestion text where one is attached.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var de *doceerrors.DocError
	if errors.As(err, &de) {
		return mapDocError(de)
	}

	if errors.Is(err, ErrNotServing) {
		return &MCPError{Code: ErrCodeInvalidRequest, Message: "server is not ready to accept requests"}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

func mapDocError(de *doceerrors.DocError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", message, de.Suggestion)
	}

	switch de.Kind {
	case doceerrors.UnknownPackage:
		return &MCPError{
			Code:      ErrCodeUnknownPackage,
			Message:   message,
			Available: de.Available,
			Similar:   de.Similar,
		}
	case doceerrors.ContextMissing:
		return &MCPError{Code: ErrCodeContextMissing, Message: message}
	case doceerrors.ProviderUnavailable:
		return &MCPError{Code: ErrCodeProviderUnavailable, Message: message}
	case doceerrors.ProtocolError:
		return &MCPError{Code: ErrCodeInvalidRequest, Message: message}
	case doceerrors.DimensionMismatch, doceerrors.ProviderContract, doceerrors.CodecFailed,
		doceerrors.RenderFailed, doceerrors.RenderOutputAmbiguous, doceerrors.SelectorFailed,
		doceerrors.TokenizerFailed, doceerrors.IoFailed, doceerrors.MissingEnv:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError builds an MCPError for a malformed tool call.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewResourceNotFoundError builds an MCPError for an unresolvable resource URI.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("resource %q not found", uri)}
}
