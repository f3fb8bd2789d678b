package docs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultConcurrency is the default number of simultaneous fetches per sync.
	DefaultConcurrency = 8

	// MaxConcurrency caps simultaneous fetches per sync.
	MaxConcurrency = 8
)

// SyncStatus is the result kind of syncing one source.
type SyncStatus string

const (
	StatusUpdated   SyncStatus = "updated"
	StatusUnchanged SyncStatus = "unchanged"
	StatusFailed    SyncStatus = "failed"
)

// Outcome reports the sync of one source.
type Outcome struct {
	// RunID identifies the Sync call that produced the outcome.
	RunID string `json:"run_id"`

	SourceID string     `json:"source"`
	Status   SyncStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`

	// Err is the failure cause for StatusFailed.
	Err error `json:"-"`

	// Pages is the number of documents the chunk list was built from.
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`

	// FailedURLs lists pages skipped because they could not be fetched.
	FailedURLs []string `json:"failed_urls,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Partial returns true if the source was updated without some of its pages.
func (o Outcome) Partial() bool {
	return o.Status == StatusUpdated && len(o.FailedURLs) > 0
}

// String renders the outcome as a single line.
func (o Outcome) String() string {
	switch o.Status {
	case StatusFailed:
		return fmt.Sprintf("%s: failed (%s)", o.SourceID, o.Reason)
	case StatusUpdated:
		if o.Partial() {
			return fmt.Sprintf("%s: updated, partial (%d pages, %d chunks, %d pages failed)", o.SourceID, o.Pages, o.Chunks, len(o.FailedURLs))
		}
		return fmt.Sprintf("%s: updated (%d pages, %d chunks)", o.SourceID, o.Pages, o.Chunks)
	default:
		return fmt.Sprintf("%s: %s (%d pages, %d chunks)", o.SourceID, o.Status, o.Pages, o.Chunks)
	}
}

// Collector refreshes sources: it fetches manifests and pages, chunks them,
// persists the result and publishes it to the index.
type Collector struct {
	sources     []domain.Source
	fetcher     Fetcher
	cache       *Cache
	chunker     *Chunker
	index       *Index
	concurrency int

	// locks serialize syncs of the same source.
	locks map[string]*sync.Mutex
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithConcurrency sets the number of simultaneous fetches, clamped to [1, MaxConcurrency].
func WithConcurrency(n int) CollectorOption {
	return func(c *Collector) {
		c.concurrency = max(1, min(n, MaxConcurrency))
	}
}

// NewCollector creates a Collector for sources.
func NewCollector(sources []domain.Source, fetcher Fetcher, cache *Cache, chunker *Chunker, index *Index, opts ...CollectorOption) *Collector {
	c := &Collector{
		sources:     sources,
		fetcher:     fetcher,
		cache:       cache,
		chunker:     chunker,
		index:       index,
		concurrency: DefaultConcurrency,
		locks:       make(map[string]*sync.Mutex, len(sources)),
	}
	for _, src := range sources {
		c.locks[src.ID] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the sources the collector manages, in canonical order.
func (c *Collector) Sources() []domain.Source {
	return c.sources
}

// LoadCached publishes cached chunk lists of sources missing from the index,
// without any network access. Returns the number of sources published.
func (c *Collector) LoadCached() int {
	return c.loadCached(false)
}

// ReloadCached republishes the cached chunk list of every source that has
// one, replacing what the index holds. Used after another process synced.
func (c *Collector) ReloadCached() int {
	return c.loadCached(true)
}

func (c *Collector) loadCached(replace bool) int {
	loaded := 0
	for _, src := range c.sources {
		lock := c.locks[src.ID]
		lock.Lock()
		if replace || !c.index.Has(src.ID) {
			if entry, ok := c.cache.Load(src.ID); ok {
				c.index.Replace(src.ID, entry.Chunks)
				loaded++
				slog.Debug("Loaded cached chunks", "source", src.ID, "chunks", len(entry.Chunks), "synced_at", entry.SyncedAt)
			}
		}
		lock.Unlock()
	}
	return loaded
}

// Sync refreshes sourceID, or every source when sourceID is empty.
// With force, cached entries are ignored and every page is fetched again.
//
// Sources are synced concurrently and fail independently; all fetches of one
// call share a single admission gate. Outcomes are returned in source order.
// The only error is for an unknown source ID.
func (c *Collector) Sync(ctx context.Context, sourceID string, force bool) ([]Outcome, error) {
	targets := c.sources
	if sourceID != "" {
		src, err := domain.LookupSource(c.sources, sourceID)
		if err != nil {
			return nil, err
		}
		targets = []domain.Source{src}
	}

	runID := uuid.NewString()
	gate := semaphore.NewWeighted(int64(c.concurrency))
	outcomes := make([]Outcome, len(targets))

	slog.Info("Starting sync", "run_id", runID, "sources", len(targets), "force", force)

	var wg sync.WaitGroup
	for i, src := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log := slog.With("run_id", runID, "source", src.ID)
			out := c.syncSource(ctx, gate, src, force, log)
			out.RunID = runID
			outcomes[i] = out
		}()
	}
	wg.Wait()

	return outcomes, nil
}

// syncSource runs the pipeline for one source. The index entry is replaced
// only after the new chunk list has been persisted.
func (c *Collector) syncSource(ctx context.Context, gate *semaphore.Weighted, src domain.Source, force bool, log *slog.Logger) Outcome {
	start := time.Now()

	lock := c.locks[src.ID]
	lock.Lock()
	defer lock.Unlock()

	out := Outcome{SourceID: src.ID}
	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Reason = err.Error()
		out.Err = err
		out.Duration = time.Since(start)
		log.Warn("Sync failed", "error", err, "duration", out.Duration)
		return out
	}

	manifest, err := c.fetch(ctx, gate, src.ManifestURL)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrManifest, err))
	}
	manifestDigest := Digest(manifest)

	if !force {
		current := map[string]string{src.ManifestURL: manifestDigest}
		if entry, ok := c.cache.Load(src.ID); ok && entry.Complete() && c.cache.IsValid(entry, current) {
			if !c.index.Has(src.ID) {
				c.index.Replace(src.ID, entry.Chunks)
			}
			out.Status = StatusUnchanged
			out.Pages = pageCount(src, entry)
			out.Chunks = len(entry.Chunks)
			out.Duration = time.Since(start)
			log.Info("Source unchanged", "chunks", out.Chunks)
			return out
		}
	}

	docs, failed, err := c.collectDocuments(ctx, gate, src, manifest, manifestDigest, log)
	if err != nil {
		return fail(err)
	}

	digests := map[string]string{src.ManifestURL: manifestDigest}
	var chunks []domain.Chunk
	for _, doc := range docs {
		digests[doc.URL] = doc.Digest
		chunks = append(chunks, c.chunker.ChunkDocument(doc)...)
	}

	entry := &CacheEntry{
		SourceID:   src.ID,
		Digests:    digests,
		FailedURLs: failed,
		SyncedAt:   time.Now().UTC(),
		Chunks:     chunks,
	}
	if err := c.cache.Store(entry); err != nil {
		return fail(err)
	}
	c.index.Replace(src.ID, chunks)

	out.Status = StatusUpdated
	out.Pages = len(docs)
	out.Chunks = len(chunks)
	out.FailedURLs = failed
	out.Duration = time.Since(start)
	log.Info("Source updated", "pages", out.Pages, "chunks", out.Chunks, "failed_pages", len(failed), "duration", out.Duration)
	return out
}

// collectDocuments resolves the documents of a source. For seed sources the
// linked pages are fetched concurrently; each result lands in its link's slot
// so the returned order is the manifest order. Failed pages are skipped and
// returned separately.
func (c *Collector) collectDocuments(ctx context.Context, gate *semaphore.Weighted, src domain.Source, manifest []byte, manifestDigest string, log *slog.Logger) ([]domain.Document, []string, error) {
	if src.Kind == domain.SourceKindFull {
		return []domain.Document{{
			SourceID: src.ID,
			URL:      src.ManifestURL,
			Title:    src.Name,
			Text:     string(manifest),
			Digest:   manifestDigest,
		}}, nil, nil
	}

	links, err := ParseLinks(string(manifest), src.ManifestURL)
	if err != nil {
		return nil, nil, err
	}
	if len(links) == 0 {
		return nil, nil, fmt.Errorf("%w: no links found in %s", domain.ErrManifest, src.ManifestURL)
	}

	type pageResult struct {
		body []byte
		err  error
	}
	results := make([]pageResult, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, link := range links {
		g.Go(func() error {
			body, err := c.fetch(gctx, gate, link.URL)
			results[i] = pageResult{body: body, err: err}
			// Only cancellation of the sync stops siblings; a failed page does not.
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("sync canceled: %w", err)
	}

	var docs []domain.Document
	var failed []string
	for i, link := range links {
		r := results[i]
		if r.err != nil {
			log.Warn("Failed to fetch page", "url", link.URL, "error", r.err)
			failed = append(failed, link.URL)
			continue
		}
		docs = append(docs, domain.Document{
			SourceID: src.ID,
			URL:      link.URL,
			Title:    link.Title,
			Text:     string(r.body),
			Digest:   Digest(r.body),
		})
	}

	if len(docs) == 0 {
		return nil, failed, fmt.Errorf("%w: all %d pages failed", domain.ErrFetch, len(links))
	}
	return docs, failed, nil
}

// fetch retrieves url once a slot of the shared gate is free.
func (c *Collector) fetch(ctx context.Context, gate *semaphore.Weighted, url string) ([]byte, error) {
	if err := gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, url, err)
	}
	defer gate.Release(1)

	return c.fetcher.Fetch(ctx, url)
}

// pageCount returns the number of documents a cached entry was built from.
func pageCount(src domain.Source, entry *CacheEntry) int {
	if src.Kind == domain.SourceKindFull {
		return 1
	}
	return max(0, len(entry.Digests)-1)
}
