package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
)

const (
	// DefaultEmbeddingsURL is the OpenAI-compatible embeddings endpoint used
	// when no override is configured.
	DefaultEmbeddingsURL = "https://api.openai.com/v1/embeddings"
	// DefaultChatURL is the OpenAI-compatible chat completions endpoint.
	DefaultChatURL = "https://api.openai.com/v1/chat/completions"
	// DefaultEmbeddingModel matches the original service's default model.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultChatModel is the default chat completion model.
	DefaultChatModel = "gpt-4o-mini-2024-07-18"

	requestTimeout = 60 * time.Second
	poolSize       = 8
)

// Client is a single HTTP client implementing both Embedder and ChatClient
// against an OpenAI-compatible API, guarded by a circuit breaker the way the
// teacher's Ollama client guards its own endpoint. Embedding requests are
// also retried under a retry policy; chat requests are sent once.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	embeddingsURL string
	chatURL       string
	embeddingModel string
	chatModel     string
	dims          int

	breaker *doceerrors.CircuitBreaker
	retry   doceerrors.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

func WithEmbeddingsURL(url string) Option { return func(c *Client) { c.embeddingsURL = url } }
func WithChatURL(url string) Option       { return func(c *Client) { c.chatURL = url } }
func WithEmbeddingModel(m string) Option  { return func(c *Client) { c.embeddingModel = m } }
func WithChatModel(m string) Option       { return func(c *Client) { c.chatModel = m } }
func WithDimensions(n int) Option         { return func(c *Client) { c.dims = n } }

// New creates a Client. apiKey must be non-empty; callers are expected to
// have already surfaced a MissingEnv DocError if it was absent from the
// environment.
func New(apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	c := &Client{
		httpClient:     &http.Client{Transport: transport},
		apiKey:         apiKey,
		embeddingsURL:  DefaultEmbeddingsURL,
		chatURL:        DefaultChatURL,
		embeddingModel: DefaultEmbeddingModel,
		chatModel:      DefaultChatModel,
		breaker:        doceerrors.NewCircuitBreaker("embedding-provider"),
		retry:          doceerrors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ModelName() string { return c.embeddingModel }
func (c *Client) Dimensions() int   { return c.dims }

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
}

// Embed generates one embedding via a single-item batch request.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch issues one request per text, matching the original service's
// one-document-per-call contract; batching at the HTTP layer is left to the
// embedding pipeline's own concurrency fan-out (C6), not this client.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		if c.dims != 0 && len(vec) != c.dims {
			return nil, doceerrors.DimensionMismatchError(c.dims, len(vec))
		}
		results[i] = vec
	}
	return results, nil
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	if !c.breaker.Allow() {
		return nil, doceerrors.New(doceerrors.ProviderUnavailable, "embedding provider circuit is open", nil)
	}

	var vec []float32
	err := doceerrors.Retry(ctx, c.retry, func() error {
		v, callErr := c.doEmbed(ctx, text)
		if callErr != nil {
			c.breaker.RecordFailure()
			return callErr
		}
		vec = v
		c.breaker.RecordSuccess()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *Client) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embeddingRequest{Input: text, Model: c.embeddingModel})
	if err != nil {
		return nil, doceerrors.New(doceerrors.ProviderContract, "encoding embedding request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embeddingsURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, doceerrors.New(doceerrors.IoFailed, "building embedding request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, doceerrors.New(doceerrors.ProviderUnavailable, "calling embedding provider", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, doceerrors.New(doceerrors.ProviderUnavailable,
			fmt.Sprintf("embedding provider returned status %d", resp.StatusCode), nil).
			WithDetail("body", string(body))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, doceerrors.New(doceerrors.ProviderContract, "decoding embedding response", err)
	}
	if len(parsed.Data) == 0 {
		return nil, doceerrors.New(doceerrors.ProviderContract, "embedding response contained no data", nil)
	}

	return parsed.Data[0].Embedding, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Complete sends messages to the chat endpoint and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	wire := make([]chatMessage, len(messages))
	for i, m := range messages {
		wire[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	reqBody, err := json.Marshal(chatRequest{Model: c.chatModel, Messages: wire})
	if err != nil {
		return "", doceerrors.New(doceerrors.ProviderContract, "encoding chat request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", doceerrors.New(doceerrors.IoFailed, "building chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	if !c.breaker.Allow() {
		return "", doceerrors.New(doceerrors.ProviderUnavailable, "chat provider circuit is open", nil)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		return "", doceerrors.New(doceerrors.ProviderUnavailable, "calling chat provider", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return "", doceerrors.New(doceerrors.ProviderUnavailable,
			fmt.Sprintf("chat provider returned status %d", resp.StatusCode), nil).
			WithDetail("body", string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.breaker.RecordFailure()
		return "", doceerrors.New(doceerrors.ProviderContract, "decoding chat response", err)
	}
	if len(parsed.Choices) == 0 {
		c.breaker.RecordFailure()
		return "", doceerrors.New(doceerrors.ProviderContract, "chat response contained no choices", nil)
	}

	c.breaker.RecordSuccess()
	return parsed.Choices[0].Message.Content, nil
}
