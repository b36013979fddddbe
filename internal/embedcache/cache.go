// Package embedcache implements the two-tier embedding cache: an in-memory
// LRU that never holds a key absent from disk, and a flat on-disk directory
// keyed by the content hash. Both tiers are keyed by internal/hashutil's
// content hash, never by the raw text, so the cache is a pure
// content-addressed store.
package embedcache

import (
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/hashutil"
)

// DefaultMemorySize bounds the in-memory tier; at 1536 floats * 4 bytes *
// 2000 entries this is roughly 12MB.
const DefaultMemorySize = 2000

// Cache is the two-tier embedding cache. It is safe for concurrent use: the
// in-memory tier has its own locking (hashicorp/golang-lru) and the disk
// tier is a set of immutable, hash-named files written atomically via
// rename.
type Cache struct {
	dir string
	mem *lru.Cache[uint64, []float32]
}

// New creates a Cache rooted at dir, creating it if necessary.
func New(dir string, memSize int) (*Cache, error) {
	if memSize <= 0 {
		memSize = DefaultMemorySize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("embedcache: creating cache dir: %w", err)
	}
	mem, err := lru.New[uint64, []float32](memSize)
	if err != nil {
		return nil, fmt.Errorf("embedcache: creating in-memory tier: %w", err)
	}
	return &Cache{dir: dir, mem: mem}, nil
}

func (c *Cache) path(h uint64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x.bin", h))
}

// Get looks up content by its hash: in-memory first, then disk. A disk hit
// is promoted into the in-memory tier. A CodecFailed decode is treated as a
// miss, not an error, per the cache's own contract.
func (c *Cache) Get(content string) ([]float32, bool) {
	h := hashutil.Hash(content)
	return c.getHash(h)
}

func (c *Cache) getHash(h uint64) ([]float32, bool) {
	if vec, ok := c.mem.Get(h); ok {
		return vec, true
	}

	data, err := os.ReadFile(c.path(h))
	if err != nil {
		return nil, false
	}

	vec, err := decode(data)
	if err != nil {
		return nil, false
	}

	c.mem.Add(h, vec)
	return vec, true
}

// Put writes an embedding to both tiers, keyed by content's hash. The
// in-memory tier is write-through: Put never leaves a key only in memory,
// since both writes happen here together.
func (c *Cache) Put(content string, vec []float32) error {
	h := hashutil.Hash(content)

	tmp, err := os.CreateTemp(c.dir, "tmp-*.bin")
	if err != nil {
		return fmt.Errorf("embedcache: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encode(vec)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("embedcache: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("embedcache: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path(h)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("embedcache: finalizing cache entry: %w", err)
	}

	c.mem.Add(h, vec)
	return nil
}
