// Package query answers a single question about a single package: resolve
// the package's Crate Entry, rank its chunks by cosine similarity to the
// embedded question, and ask the chat endpoint to answer using the winning
// chunk's source document as context.
package query

import (
	"context"
	"fmt"
	"math"
	"time"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/registry"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/telemetry"
)

// Resolver is the subset of *registry.Registry the engine depends on, so
// tests can substitute a fake without standing up a real renderer.
type Resolver interface {
	Resolve(name string) (*registry.CrateEntry, error)
	IsLazy() bool
	IngestIfRenderable(ctx context.Context, name string) (*registry.CrateEntry, error)
}

// Engine answers questions about a registry's ingested packages.
type Engine struct {
	registry Resolver
	embedder providers.Embedder
	chat     providers.ChatClient
	recorder *telemetry.Recorder
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithRecorder attaches a telemetry recorder; every completed query logs a
// (timestamp, package, question, winning path, score, latency) row through
// it. A nil recorder (the default) disables logging entirely.
func WithRecorder(rec *telemetry.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// New creates an Engine.
func New(reg Resolver, embedder providers.Embedder, chat providers.ChatClient, opts ...Option) *Engine {
	e := &Engine{registry: reg, embedder: embedder, chat: chat}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const systemPromptTemplate = "You are an expert on the Go package %q. Answer the user's question using only the documentation excerpt provided."

// Query resolves packageName, ranks its chunks against question, and asks
// the chat endpoint to answer using the winning chunk's document as
// context. If packageName is not already loaded, lazy registries attempt a
// single ingest-and-retry from the renderable set before failing.
func (e *Engine) Query(ctx context.Context, packageName, question string) (string, error) {
	start := time.Now()

	entry, err := e.resolve(ctx, packageName)
	if err != nil {
		return "", err
	}

	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		if doceerrors.GetKind(err) != "" {
			return "", err
		}
		return "", doceerrors.Wrap(doceerrors.ProviderContract, err)
	}

	winner, score, ok := bestMatchEntry(queryVec, entry)
	if !ok {
		return "", doceerrors.New(doceerrors.ContextMissing, fmt.Sprintf("package %q has no embedded content", packageName), nil)
	}

	docBody, ok := documentBody(entry, winner.DocPath)
	if !ok {
		return "", doceerrors.New(doceerrors.ContextMissing,
			fmt.Sprintf("document %q is no longer present in package %q", winner.DocPath, packageName), nil).
			WithDetail("document", winner.DocPath)
	}

	messages := []providers.ChatMessage{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, packageName)},
		{Role: "user", Content: fmt.Sprintf("Documentation excerpt:\n\n%s\n\nQuestion: %s", docBody, question)},
	}

	answer, err := e.chat.Complete(ctx, messages)
	if err != nil {
		if doceerrors.GetKind(err) != "" {
			return "", err
		}
		return "", doceerrors.Wrap(doceerrors.ProviderContract, err)
	}

	e.recorder.Record(ctx, telemetry.Record{
		Timestamp:   start,
		Package:     packageName,
		Question:    question,
		WinningPath: winner.DocPath,
		Score:       score,
		LatencyMS:   time.Since(start).Milliseconds(),
	})
	return answer, nil
}

func (e *Engine) resolve(ctx context.Context, packageName string) (*registry.CrateEntry, error) {
	entry, err := e.registry.Resolve(packageName)
	if err == nil {
		return entry, nil
	}
	if doceerrors.GetKind(err) != doceerrors.UnknownPackage || !e.registry.IsLazy() {
		return nil, err
	}

	if _, ingestErr := e.registry.IngestIfRenderable(ctx, packageName); ingestErr != nil {
		return nil, ingestErr
	}
	return e.registry.Resolve(packageName)
}

// annShortlistSize bounds how many candidates a CrateEntry's secondary
// HNSW index is asked for before the exact cosine scan narrows them to one.
const annShortlistSize = 64

// bestMatchEntry scores entry's chunks against query exactly as §4.8
// specifies. For crates large enough to carry a secondary ANN index
// (registry.CrateEntry.ANN), the scan is narrowed to the index's shortlist
// first — every score returned is still an exact cosine computed by
// bestMatch, never an ANN distance, so the zero-norm and tie-break
// contract is unchanged; only which chunks get scored is narrowed.
func bestMatchEntry(query []float32, entry *registry.CrateEntry) (registry.ChunkRecord, float64, bool) {
	if entry.ANN == nil {
		return bestMatch(query, entry.Chunks)
	}

	indices := entry.ANN.Shortlist(query, annShortlistSize)
	if len(indices) == 0 {
		return bestMatch(query, entry.Chunks)
	}

	shortlisted := make([]registry.ChunkRecord, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(entry.Chunks) {
			shortlisted = append(shortlisted, entry.Chunks[i])
		}
	}
	return bestMatch(query, shortlisted)
}

// bestMatch returns the chunk whose vector has the highest cosine
// similarity to query, breaking ties by first occurrence.
func bestMatch(query []float32, chunks []registry.ChunkRecord) (registry.ChunkRecord, float64, bool) {
	if len(chunks) == 0 {
		return registry.ChunkRecord{}, 0, false
	}

	best := chunks[0]
	bestScore := cosine(query, chunks[0].Vector)
	for _, c := range chunks[1:] {
		score := cosine(query, c.Vector)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, bestScore, true
}

// cosine computes dot(a,b) / (‖a‖·‖b‖), returning 0 if either vector has
// zero norm rather than dividing by zero.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func documentBody(entry *registry.CrateEntry, path string) (string, bool) {
	for _, doc := range entry.Documents {
		if doc.Path == path {
			return doc.Content, true
		}
	}
	return "", false
}
