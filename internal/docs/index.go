package docs

import (
	"strings"
	"sync"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

// indexedChunk pairs a chunk with the search material derived from it.
type indexedChunk struct {
	chunk domain.Chunk

	// text is the lower-cased heading path and body, for substring matching.
	text string

	// terms are the words of text, for whole-word matching.
	terms []string
}

// indexEntry is the immutable, published state of one source.
type indexEntry struct {
	chunks []indexedChunk
}

// Index is the in-memory state searched at query time: one chunk list per
// source. Each Replace builds the new entry off to the side and publishes it
// in a single swap, so readers see either the old or the new list, never a mix.
type Index struct {
	analyzer *WordAnalyzer

	mu      sync.RWMutex
	entries map[string]*indexEntry
	version uint64
}

// NewIndex creates an empty index.
func NewIndex(analyzer *WordAnalyzer) *Index {
	return &Index{
		analyzer: analyzer,
		entries:  make(map[string]*indexEntry),
	}
}

// Replace publishes chunks as the complete chunk list of sourceID.
func (i *Index) Replace(sourceID string, chunks []domain.Chunk) {
	entry := &indexEntry{chunks: make([]indexedChunk, len(chunks))}
	for n, c := range chunks {
		text := strings.ToLower(strings.Join(c.HeadingPath, " ") + "\n" + c.Body)
		entry.chunks[n] = indexedChunk{
			chunk: c,
			text:  text,
			terms: i.analyzer.Terms(text),
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[sourceID] = entry
	i.version++
}

// Has returns true if sourceID has been published, even with zero chunks.
func (i *Index) Has(sourceID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.entries[sourceID]
	return ok
}

// Count returns the number of chunks published for sourceID.
func (i *Index) Count(sourceID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if entry, ok := i.entries[sourceID]; ok {
		return len(entry.chunks)
	}
	return 0
}

// Len returns the total number of chunks across all sources.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	total := 0
	for _, entry := range i.entries {
		total += len(entry.chunks)
	}
	return total
}

// Version increases every time a source is replaced.
func (i *Index) Version() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.version
}

// Chunks returns a copy of the chunk list of sourceID.
func (i *Index) Chunks(sourceID string) []domain.Chunk {
	i.mu.RLock()
	entry, ok := i.entries[sourceID]
	i.mu.RUnlock()
	if !ok {
		return nil
	}

	chunks := make([]domain.Chunk, len(entry.chunks))
	for n, ic := range entry.chunks {
		chunks[n] = ic.chunk
	}
	return chunks
}

// PageChunks returns the chunks cut from url, in position order, searching
// sourceIDs in order. The first source holding the page wins.
func (i *Index) PageChunks(sourceIDs []string, url string) []domain.Chunk {
	_, entries := i.snapshot(sourceIDs)
	for _, entry := range entries {
		var chunks []domain.Chunk
		for _, ic := range entry.chunks {
			if ic.chunk.URL == url {
				chunks = append(chunks, ic.chunk)
			}
		}
		if len(chunks) > 0 {
			return chunks
		}
	}
	return nil
}

// snapshot returns the current version and the published entries of
// sourceIDs in the given order. Unpublished sources are skipped. Entries are
// immutable, so callers scan them without holding the lock.
func (i *Index) snapshot(sourceIDs []string) (uint64, []*indexEntry) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entries := make([]*indexEntry, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if entry, ok := i.entries[id]; ok {
			entries = append(entries, entry)
		}
	}
	return i.version, entries
}
