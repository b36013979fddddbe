package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Input)

		json.NewEncoder(w).Encode(embeddingResponse{
			Data:  []embeddingData{{Embedding: []float32{0.1, 0.2, 0.3}}},
			Model: req.Model,
		})
	}))
	defer srv.Close()

	c := New("test-key", WithEmbeddingsURL(srv.URL))
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{{Embedding: []float32{1, 2}}}})
	}))
	defer srv.Close()

	c := New("test-key", WithEmbeddingsURL(srv.URL), WithDimensions(3))
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, doceerrors.DimensionMismatch, doceerrors.GetKind(err))
}

func TestEmbed_ServerErrorTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("test-key", WithEmbeddingsURL(srv.URL))
	c.retry = doceerrors.RetryConfig{MaxRetries: 0}

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, doceerrors.ProviderUnavailable, doceerrors.GetKind(err))
}

func TestEmbed_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New("test-key", WithEmbeddingsURL(srv.URL))
	c.retry = doceerrors.RetryConfig{MaxRetries: 0}

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, doceerrors.ProviderContract, doceerrors.GetKind(err))
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "the answer"}}},
		})
	}))
	defer srv.Close()

	c := New("test-key", WithChatURL(srv.URL))
	reply, err := c.Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "you are a helpful assistant"},
		{Role: "user", Content: "what is this?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := New("test-key", WithChatURL(srv.URL))
	_, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Equal(t, doceerrors.ProviderContract, doceerrors.GetKind(err))
}
