// Package registry holds every package this server has ingested — its
// rendered documents, their chunks, and each chunk's embedding — and
// resolves a user-supplied package name against that set fuzzily, the way
// the doc generator's crate discovery does for hyphen/underscore variants.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/chunk"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/embedcache"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/embedpipeline"
	doceerrors "github.com/pkgdocs-mcp/pkgdocs-mcp/internal/errors"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/extract"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/render"
)

// ChunkRecord is one embedded chunk, tied back to the document it came from.
type ChunkRecord struct {
	DocPath string
	Chunk   chunk.Chunk
	Vector  []float32
}

// CrateEntry is one ingested package: its documents and every chunk's
// embedding, plus the renderer workspace backing it so the caller can
// evict it later.
type CrateEntry struct {
	// ID distinguishes entries that share a Name across reingestion (a
	// stale log line or telemetry row naming an ID that's no longer
	// current tells the reader it predates the replacement, something
	// Name alone can't).
	ID        string
	Name      string
	Module    string
	Documents []extract.Document
	Chunks    []ChunkRecord

	// ANN is a secondary HNSW index over Chunks, built only when len(Chunks)
	// exceeds AnnIndexThreshold. Nil for the common small-crate case; query
	// engine callers that want the shortcut must check for nil and fall
	// back to a full scan.
	ANN *AnnIndex

	workspace *render.Workspace
}

// Close releases the renderer workspace backing this entry, if any.
func (e *CrateEntry) Close() error {
	if e.workspace == nil {
		return nil
	}
	return e.workspace.Close()
}

// Config configures a Registry.
type Config struct {
	Tags []string
	Lazy bool
	// Renderable maps a package name to the Go module path that renders it,
	// the "renderable set" a lazy Resolve falls back to ingesting from.
	Renderable map[string]string
	Cache      *embedcache.Cache
}

// Renderer is the subset of render.Driver the registry depends on. Tests
// substitute a fake that returns a pre-populated render.Workspace instead
// of shelling out to the Go toolchain.
type Renderer interface {
	Render(ctx context.Context, opts render.Options) (*render.Workspace, error)
}

// Notifier is the registry's external peer handle: it learns about a newly
// (or re-)ingested crate the moment Ingest installs it, so a peer that
// exposes the registry over another protocol — the MCP server's resource
// list, chiefly — doesn't have to poll Names() to notice lazily-ingested
// packages.
type Notifier interface {
	OnCrateIngested(name string)
}

// Registry is the single source of truth for every ingested package. All
// access goes through one RWMutex, matching the teacher's preference for a
// single coarse lock over a package-level data structure rather than
// per-entry locks.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*CrateEntry
	tags       []string
	lazy       bool
	renderable map[string]string
	cache      *embedcache.Cache
	renderer   Renderer
	embedder   providers.Embedder
	notifier   Notifier
}

// SetNotifier attaches the registry's external peer handle. Called once,
// after both the registry and its peer (e.g. the MCP server) exist, since
// the peer typically needs the registry to already be constructed.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// New creates an empty Registry.
func New(cfg Config, renderer Renderer, embedder providers.Embedder) *Registry {
	renderable := cfg.Renderable
	if renderable == nil {
		renderable = make(map[string]string)
	}
	return &Registry{
		entries:    make(map[string]*CrateEntry),
		tags:       cfg.Tags,
		lazy:       cfg.Lazy,
		renderable: renderable,
		cache:      cfg.Cache,
		renderer:   renderer,
		embedder:   embedder,
	}
}

// Names returns every currently loaded package name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the loaded entry for name, if any, without ingesting.
func (r *Registry) Get(name string) (*CrateEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Resolve finds the loaded entry matching name, fuzzily (hyphen/underscore,
// case-insensitive, substring in either direction). Exactly one fuzzy match
// resolves to that entry; zero or multiple is UnknownPackage with the
// candidate names attached as a suggestion. When nothing loaded matches, the
// renderable set (not yet ingested) is also searched so the suggestion can
// name a package the caller could ask to have lazily ingested.
func (r *Registry) Resolve(name string) (*CrateEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e, nil
	}

	loadedNames := r.namesLocked()
	matches := findMatches(name, loadedNames)
	switch len(matches) {
	case 1:
		return r.entries[matches[0]], nil
	case 0:
		similar := findMatches(name, r.renderableNamesLocked())
		return nil, doceerrors.UnknownPackageError(name, loadedNames, similar)
	default:
		return nil, doceerrors.UnknownPackageError(name, loadedNames, matches)
	}
}

// IngestIfRenderable ingests name using the module path recorded in the
// renderable set, or returns UnknownPackage if name was never registered as
// renderable.
func (r *Registry) IngestIfRenderable(ctx context.Context, name string) (*CrateEntry, error) {
	r.mu.RLock()
	module, ok := r.renderable[name]
	loadedNames := r.namesLocked()
	similar := findMatches(name, r.renderableNamesLocked())
	r.mu.RUnlock()

	if !ok {
		return nil, doceerrors.UnknownPackageError(name, loadedNames, similar)
	}
	return r.Ingest(ctx, name, module)
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) renderableNamesLocked() []string {
	names := make([]string, 0, len(r.renderable))
	for name := range r.renderable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ingest renders, extracts, chunks, and embeds module, installing the
// result as a CrateEntry under name. Chunks already present in the
// embedding cache are reused; only new chunks are sent to the embedder.
func (r *Registry) Ingest(ctx context.Context, name, module string) (*CrateEntry, error) {
	ws, err := r.renderer.Render(ctx, render.Options{Module: module, Tags: r.tags})
	if err != nil {
		return nil, err
	}

	docRoot, err := render.FindDocRoot(ws.Dir())
	if err != nil {
		ws.Close()
		return nil, err
	}

	docs, err := extract.Extract(docRoot)
	if err != nil {
		ws.Close()
		return nil, err
	}

	chunker := chunk.NewDefault()

	type pending struct {
		docPath string
		chunk   chunk.Chunk
	}
	var toEmbed []pending
	var reused []ChunkRecord

	for _, doc := range docs {
		for _, c := range chunker.Chunk(doc.Content) {
			if r.cache != nil {
				if vec, ok := r.cache.Get(c.Content); ok {
					reused = append(reused, ChunkRecord{DocPath: doc.Path, Chunk: c, Vector: vec})
					continue
				}
			}
			toEmbed = append(toEmbed, pending{docPath: doc.Path, chunk: c})
		}
	}

	var embedded []ChunkRecord
	if len(toEmbed) > 0 {
		chunksOnly := make([]chunk.Chunk, len(toEmbed))
		for i, p := range toEmbed {
			chunksOnly[i] = p.chunk
		}
		pairs, _, embedErr := embedpipeline.Embed(ctx, r.embedder, chunksOnly)
		if embedErr != nil {
			ws.Close()
			return nil, embedErr
		}
		vecByID := make(map[string][]float32, len(pairs))
		for _, pv := range pairs {
			vecByID[pv.ChunkID] = pv.Vector
		}
		for _, p := range toEmbed {
			vec, ok := vecByID[p.chunk.ID]
			if !ok {
				continue
			}
			if r.cache != nil {
				r.cache.Put(p.chunk.Content, vec)
			}
			embedded = append(embedded, ChunkRecord{DocPath: p.docPath, Chunk: p.chunk, Vector: vec})
		}
	}

	allChunks := append(reused, embedded...)

	entry := &CrateEntry{
		ID:        uuid.NewString(),
		Name:      name,
		Module:    module,
		Documents: docs,
		Chunks:    allChunks,
		workspace: ws,
	}
	if len(allChunks) > AnnIndexThreshold {
		entry.ANN = NewAnnIndex(allChunks)
	}

	r.mu.Lock()
	r.entries[name] = entry
	notifier := r.notifier
	r.mu.Unlock()

	if notifier != nil {
		notifier.OnCrateIngested(name)
	}

	return entry, nil
}

// Preload ingests every (name, module) pair sequentially — not in
// parallel, since concurrent renderer-driver invocations would race on
// overlapping ephemeral module caches. The first failure is returned along
// with how many packages were loaded before it.
func (r *Registry) Preload(ctx context.Context, modules map[string]string) (loaded int, err error) {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ingestErr := r.Ingest(ctx, name, modules[name]); ingestErr != nil {
			return loaded, fmt.Errorf("preloading %s: %w", name, ingestErr)
		}
		loaded++
	}
	return loaded, nil
}

// IsLazy reports whether the registry should ingest on demand rather than
// requiring everything to be preloaded.
func (r *Registry) IsLazy() bool { return r.lazy }
