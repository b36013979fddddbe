package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/extract"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/registry"
)

type fakeResolver struct {
	entries map[string]*registry.CrateEntry
	lazy    bool
	ingestN int
}

func (f *fakeResolver) Resolve(name string) (*registry.CrateEntry, error) {
	if e, ok := f.entries[name]; ok {
		return e, nil
	}
	return nil, doceerrors.UnknownPackageError(name, nil, nil)
}

func (f *fakeResolver) IsLazy() bool { return f.lazy }

func (f *fakeResolver) IngestIfRenderable(ctx context.Context, name string) (*registry.CrateEntry, error) {
	f.ingestN++
	if f.entries == nil {
		f.entries = map[string]*registry.CrateEntry{}
	}
	entry := &registry.CrateEntry{
		Name:      name,
		Documents: []extract.Document{{Path: "index.html", Content: "lazily ingested content"}},
		Chunks:    []registry.ChunkRecord{{DocPath: "index.html", Vector: []float32{1, 0}}},
	}
	f.entries[name] = entry
	return entry, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) Dimensions() int   { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeChat struct {
	reply string
	err   error
	seen  []providers.ChatMessage
}

func (f *fakeChat) Complete(ctx context.Context, messages []providers.ChatMessage) (string, error) {
	f.seen = messages
	return f.reply, f.err
}

func entryWithDocs(docs ...extract.Document) *registry.CrateEntry {
	e := &registry.CrateEntry{Name: "rustlib", Documents: docs}
	return e
}

func TestQuery_RanksByRustDocHighest(t *testing.T) {
	entry := entryWithDocs(
		extract.Document{Path: "rust.html", Content: "how to write a rust function"},
		extract.Document{Path: "python.html", Content: "how to write a python function"},
		extract.Document{Path: "astro.html", Content: "facts about astrophysics"},
	)
	entry.Chunks = []registry.ChunkRecord{
		{DocPath: "rust.html", Vector: []float32{1, 0, 0}},
		{DocPath: "python.html", Vector: []float32{0, 1, 0}},
		{DocPath: "astro.html", Vector: []float32{0, 0, 1}},
	}

	reg := &fakeResolver{entries: map[string]*registry.CrateEntry{"rustlib": entry}}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	chat := &fakeChat{reply: "Use fn main() {}"}

	e := New(reg, embedder, chat)
	answer, err := e.Query(context.Background(), "rustlib", "How do I write a Rust function?")
	require.NoError(t, err)
	assert.Equal(t, "Use fn main() {}", answer)
	require.Len(t, chat.seen, 2)
	assert.Contains(t, chat.seen[1].Content, "how to write a rust function")
}

func TestQuery_UnknownPackageNoLazy(t *testing.T) {
	reg := &fakeResolver{}
	e := New(reg, &fakeEmbedder{}, &fakeChat{})

	_, err := e.Query(context.Background(), "nope", "anything")
	require.Error(t, err)
	assert.Equal(t, doceerrors.UnknownPackage, doceerrors.GetKind(err))
}

func TestQuery_LazyIngestOnMiss(t *testing.T) {
	reg := &fakeResolver{lazy: true}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	chat := &fakeChat{reply: "answer"}

	e := New(reg, embedder, chat)
	answer, err := e.Query(context.Background(), "newpkg", "what is this?")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Equal(t, 1, reg.ingestN)
}

func TestQuery_ContextMissingWhenDocumentGone(t *testing.T) {
	entry := &registry.CrateEntry{
		Name:      "pkg",
		Documents: nil,
		Chunks:    []registry.ChunkRecord{{DocPath: "gone.html", Vector: []float32{1}}},
	}
	reg := &fakeResolver{entries: map[string]*registry.CrateEntry{"pkg": entry}}
	e := New(reg, &fakeEmbedder{vec: []float32{1}}, &fakeChat{reply: "x"})

	_, err := e.Query(context.Background(), "pkg", "question")
	require.Error(t, err)
	assert.Equal(t, doceerrors.ContextMissing, doceerrors.GetKind(err))
}

func TestCosine_ZeroNormIsZeroScore(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, cosine([]float32{1, 1}, []float32{0, 0}))
}

func TestBestMatch_TieBreaksByFirstOccurrence(t *testing.T) {
	chunks := []registry.ChunkRecord{
		{DocPath: "a", Vector: []float32{1, 0}},
		{DocPath: "b", Vector: []float32{1, 0}},
	}
	winner, score, ok := bestMatch([]float32{1, 0}, chunks)
	require.True(t, ok)
	assert.Equal(t, "a", winner.DocPath)
	assert.Equal(t, 1.0, score)
}

func TestBestMatchEntry_FallsBackToFullScanWithoutANN(t *testing.T) {
	entry := &registry.CrateEntry{
		Chunks: []registry.ChunkRecord{
			{DocPath: "a", Vector: []float32{1, 0}},
			{DocPath: "b", Vector: []float32{0, 1}},
		},
	}
	winner, score, ok := bestMatchEntry([]float32{0, 1}, entry)
	require.True(t, ok)
	assert.Equal(t, "b", winner.DocPath)
	assert.Equal(t, 1.0, score)
}

func TestBestMatchEntry_UsesANNShortlistWhenPresent(t *testing.T) {
	chunks := []registry.ChunkRecord{
		{DocPath: "a", Vector: []float32{1, 0, 0}},
		{DocPath: "b", Vector: []float32{0, 1, 0}},
		{DocPath: "c", Vector: []float32{0, 0, 1}},
	}
	entry := &registry.CrateEntry{
		Chunks: chunks,
		ANN:    registry.NewAnnIndex(chunks),
	}
	winner, score, ok := bestMatchEntry([]float32{0, 0, 1}, entry)
	require.True(t, ok)
	assert.Equal(t, "c", winner.DocPath)
	assert.Equal(t, 1.0, score)
}
