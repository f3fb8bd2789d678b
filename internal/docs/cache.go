package docs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

const (
	// CacheVersion is the current schema version of cache entry files.
	CacheVersion = 1

	// CacheFileSuffix is appended to the source ID to form the entry file name.
	CacheFileSuffix = ".json"
)

// CacheEntry is the persisted state of one source.
type CacheEntry struct {
	Version  int    `json:"version"`
	SourceID string `json:"source"`

	// Digests maps URL to content digest. The manifest URL is always present;
	// seed sources also record one digest per fetched page.
	Digests map[string]string `json:"digests"`

	// MaxChunkLen is the chunker limit the chunks were produced with.
	MaxChunkLen int `json:"max_chunk_len"`

	// FailedURLs lists pages that could not be fetched during the sync that
	// produced this entry.
	FailedURLs []string `json:"failed_urls,omitempty"`

	SyncedAt time.Time      `json:"synced_at"`
	Chunks   []domain.Chunk `json:"chunks"`
}

// Complete returns true if every page of the source was fetched.
func (e *CacheEntry) Complete() bool {
	return len(e.FailedURLs) == 0
}

// Cache persists one entry file per source under a fixed directory.
// It assumes a single writer per source; callers serialize writes.
type Cache struct {
	dir         string
	maxChunkLen int
}

// NewCache creates a cache rooted at dir. Entries produced with a different
// maxChunkLen are considered stale.
func NewCache(dir string, maxChunkLen int) *Cache {
	return &Cache{
		dir:         dir,
		maxChunkLen: maxChunkLen,
	}
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) entryPath(sourceID string) string {
	return filepath.Join(c.dir, sourceID+CacheFileSuffix)
}

// Load reads the persisted entry for a source.
// Missing, unreadable or corrupt entries are reported as absent, never as errors.
func (c *Cache) Load(sourceID string) (*CacheEntry, bool) {
	entry, err := c.read(sourceID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("Ignoring unusable cache entry", "source", sourceID, "error", err)
		}
		return nil, false
	}
	return entry, true
}

func (c *Cache) read(sourceID string) (*CacheEntry, error) {
	data, err := os.ReadFile(c.entryPath(sourceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheRead, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: failed to parse entry: %w", domain.ErrCacheRead, err)
	}

	if entry.Version != CacheVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrCacheRead, entry.Version)
	}
	if entry.SourceID != sourceID {
		return nil, fmt.Errorf("%w: entry belongs to %q", domain.ErrCacheRead, entry.SourceID)
	}
	if entry.Digests == nil {
		entry.Digests = make(map[string]string)
	}

	return &entry, nil
}

// IsValid returns true if the entry still describes the remote content:
// every URL in current has the same stored digest, and the entry was chunked
// with the current limit.
func (c *Cache) IsValid(entry *CacheEntry, current map[string]string) bool {
	if entry == nil || len(current) == 0 {
		return false
	}
	if entry.MaxChunkLen != c.maxChunkLen {
		return false
	}
	for url, digest := range current {
		if stored, ok := entry.Digests[url]; !ok || stored != digest {
			return false
		}
	}
	return true
}

// Store atomically replaces the persisted entry for entry.SourceID.
// Uses write-to-temp + rename so a crash never corrupts the previous entry.
func (c *Cache) Store(entry *CacheEntry) error {
	if entry == nil || entry.SourceID == "" {
		return fmt.Errorf("%w: entry source required", domain.ErrCachePersist)
	}

	entry.Version = CacheVersion
	entry.MaxChunkLen = c.maxChunkLen

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal entry: %w", domain.ErrCachePersist, err)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create cache directory: %w", domain.ErrCachePersist, err)
	}

	path := c.entryPath(entry.SourceID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to write temp file: %w", domain.ErrCachePersist, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to rename entry file: %w", domain.ErrCachePersist, err)
	}

	return nil
}

// Clear deletes the persisted entry for a source. A missing entry is not an error.
func (c *Cache) Clear(sourceID string) error {
	if err := os.Remove(c.entryPath(sourceID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry %s: %w", sourceID, err)
	}
	return nil
}

// ClearAll deletes the persisted entries of all given sources.
func (c *Cache) ClearAll(sourceIDs []string) error {
	var errs []error
	for _, id := range sourceIDs {
		if err := c.Clear(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
