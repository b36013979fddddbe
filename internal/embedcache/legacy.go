package embedcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// legacyRecord is the shape of a pre-v2 cache entry: one JSON file per
// chunk, keyed by an opaque chunk id rather than the chunk's content hash.
type legacyRecord struct {
	Vector   []float32 `json:"vector"`
	Document string    `json:"document"`
	Model    string    `json:"model"`
	Provider string    `json:"provider"`
}

// MigrateLegacy imports every entry from a pre-v2 cache directory (one JSON
// file per chunk, named by chunk id) into c, re-keying each entry by the
// content hash of its stored document text. It is not on any hot path: call
// it once, at startup, behind an explicit opt-in flag.
//
// A process-wide flock guards the legacy directory so two server instances
// migrating concurrently don't race on the same files; it does not protect
// against concurrent writers of the legacy format itself, since nothing
// writes that format anymore.
func (c *Cache) MigrateLegacy(legacyDir string) (migrated int, err error) {
	if _, statErr := os.Stat(legacyDir); os.IsNotExist(statErr) {
		return 0, nil
	}

	lockPath := filepath.Join(legacyDir, ".migration.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("embedcache: acquiring legacy migration lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("embedcache: legacy migration already in progress")
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(legacyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("embedcache: reading legacy cache dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".lock" || entry.Name() == ".migration.lock" {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(legacyDir, entry.Name()))
		if readErr != nil {
			continue
		}

		var rec legacyRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr != nil {
			continue
		}
		if rec.Document == "" || len(rec.Vector) == 0 {
			continue
		}

		if putErr := c.Put(rec.Document, rec.Vector); putErr != nil {
			continue
		}
		migrated++
	}

	return migrated, nil
}
