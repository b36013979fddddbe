// Package embedpipeline fans a document's chunks out to an embedding
// provider with bounded concurrency, gating any chunk whose estimated token
// count exceeds the provider's budget.
package embedpipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/chunk"
	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
)

const (
	// TokenCap is the per-chunk token budget; a chunk estimated over this
	// is skipped rather than sent to the provider, since most embedding
	// models reject or truncate oversized inputs anyway.
	TokenCap = 8000

	// Concurrency bounds how many embedding calls run at once.
	Concurrency = 8
)

// PathVector pairs a chunk id with its embedding.
type PathVector struct {
	ChunkID string
	Vector  []float32
}

// EstimateTokens approximates a BPE tokenizer's output by counting
// whitespace-delimited words, scaled by the typical ~0.75 words-per-token
// ratio observed for English prose. It is deliberately not exact — see
// DESIGN.md for why no tokenizer dependency was pulled in for this.
func EstimateTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return (words * 4) / 3
}

// Embed runs chunks through embedder with bounded concurrency, skipping any
// chunk whose estimated token count exceeds TokenCap. The first embedding
// error aborts the whole run (first-error-wins); partial results are
// discarded since a partially embedded document is not a usable Crate Entry.
func Embed(ctx context.Context, embedder providers.Embedder, chunks []chunk.Chunk) ([]PathVector, int, error) {
	results := make([]PathVector, len(chunks))
	included := make([]bool, len(chunks))
	totalTokens := 0

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, Concurrency)

	for i, c := range chunks {
		tokens := EstimateTokens(c.Content)
		if tokens > TokenCap {
			continue
		}
		totalTokens += tokens
		included[i] = true

		i, c := i, c
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			vec, err := embedder.Embed(gctx, c.Content)
			if err != nil {
				if doceerrors.GetKind(err) != "" {
					return err
				}
				return doceerrors.Wrap(doceerrors.ProviderContract, err)
			}
			results[i] = PathVector{ChunkID: c.ID, Vector: vec}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]PathVector, 0, len(chunks))
	for i, ok := range included {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, totalTokens, nil
}
