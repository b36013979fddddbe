package embedcache

import (
	"context"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
)

// CachingEmbedder wraps a providers.Embedder with a Cache, so every text —
// a chunk at ingestion or a question at query time — is embedded through
// the same content-addressed cache rather than re-hitting the external
// endpoint for text it has already seen.
type CachingEmbedder struct {
	embedder providers.Embedder
	cache    *Cache
}

// NewCachingEmbedder wraps embedder with cache. A nil cache makes Embed and
// EmbedBatch pass straight through to embedder, uncached.
func NewCachingEmbedder(embedder providers.Embedder, cache *Cache) *CachingEmbedder {
	return &CachingEmbedder{embedder: embedder, cache: cache}
}

// Embed returns text's cached embedding if present, otherwise calls the
// wrapped embedder and caches the result under text's content hash.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cache == nil {
		return c.embedder.Embed(ctx, text)
	}
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(text, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts, serving any already-cached entries from the
// cache and only sending the uncached remainder to the wrapped embedder.
// Results are returned in the same order as texts.
func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cache == nil {
		return c.embedder.EmbedBatch(ctx, texts)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Put(texts[i], vecs[j]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Dimensions delegates to the wrapped embedder.
func (c *CachingEmbedder) Dimensions() int { return c.embedder.Dimensions() }

// ModelName delegates to the wrapped embedder.
func (c *CachingEmbedder) ModelName() string { return c.embedder.ModelName() }
