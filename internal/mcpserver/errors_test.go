package mcpserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_UnknownPackage(t *testing.T) {
	err := doceerrors.UnknownPackageError("nope", nil, []string{"close"})
	mcpErr := MapError(err)
	assert.Equal(t, ErrCodeUnknownPackage, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "did you mean")
	assert.Equal(t, []string{"close"}, mcpErr.Similar)
}

func TestMapError_UnknownPackage_CarriesBothAvailableAndSimilar(t *testing.T) {
	err := doceerrors.UnknownPackageError("nope", []string{"pkg-a", "pkg-b"}, []string{"close"})
	mcpErr := MapError(err)
	assert.Equal(t, []string{"pkg-a", "pkg-b"}, mcpErr.Available)
	assert.Equal(t, []string{"close"}, mcpErr.Similar)
}

func TestMapError_ContextMissing(t *testing.T) {
	err := doceerrors.ContextMissingError("pkg")
	mcpErr := MapError(err)
	assert.Equal(t, ErrCodeContextMissing, mcpErr.Code)
}

func TestMapError_ProviderUnavailable(t *testing.T) {
	err := doceerrors.New(doceerrors.ProviderUnavailable, "endpoint down", nil)
	mcpErr := MapError(err)
	assert.Equal(t, ErrCodeProviderUnavailable, mcpErr.Code)
}

func TestMapError_GenericErrorIsInternal(t *testing.T) {
	mcpErr := MapError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
}
