package docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sha1n/mcp-tossdocs-server/internal/config"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

// SourceStatus describes the current state of one source.
type SourceStatus struct {
	Source domain.Source

	// Loaded is true once the source has a chunk list in the index.
	Loaded bool
	Chunks int

	// LastOutcome is the result of the most recent sync, nil before the first.
	LastOutcome *Outcome
	LastSync    time.Time
}

// Service wires fetching, chunking, caching and searching together and owns
// the lifecycle: warm start from cache, leader-elected startup sync and
// scheduled background syncs.
type Service struct {
	settings  *config.DocsSettings
	sources   []domain.Source
	cache     *Cache
	index     *Index
	collector *Collector
	searcher  *Searcher
	lock      *SyncLock
	scheduler *Scheduler

	mu       sync.RWMutex
	outcomes map[string]Outcome
	syncedAt map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type serviceOptions struct {
	sources []domain.Source
	fetcher Fetcher
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithSources replaces the built-in sources.
func WithSources(sources []domain.Source) ServiceOption {
	return func(o *serviceOptions) {
		o.sources = sources
	}
}

// WithFetcher replaces the HTTP fetcher, e.g. with a MockFetcher in tests.
func WithFetcher(f Fetcher) ServiceOption {
	return func(o *serviceOptions) {
		o.fetcher = f
	}
}

// NewService creates a new documentation service.
func NewService(settings *config.DocsSettings, opts ...ServiceOption) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	o := &serviceOptions{sources: domain.DefaultSources()}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	seen := make(map[string]bool, len(o.sources))
	for _, src := range o.sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("%w: duplicate source %s", domain.ErrInvalidArgument, src.ID)
		}
		seen[src.ID] = true
	}

	if err := os.MkdirAll(settings.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if o.fetcher == nil {
		o.fetcher = NewHTTPFetcher(
			WithFetchTimeout(settings.FetchTimeout),
			WithRetries(settings.FetchRetries),
			WithRateLimit(settings.RateLimit),
		)
	}

	analyzer, err := CreateWordAnalyzer()
	if err != nil {
		return nil, err
	}

	chunker := NewChunker(WithMaxChunkLen(settings.MaxChunkLen))
	cache := NewCache(settings.CacheDir, chunker.MaxLen())
	index := NewIndex(analyzer)

	return &Service{
		settings:  settings,
		sources:   o.sources,
		cache:     cache,
		index:     index,
		collector: NewCollector(o.sources, o.fetcher, cache, chunker, index, WithConcurrency(settings.Concurrency)),
		searcher: NewSearcher(index, o.sources,
			WithDefaultLimit(settings.MaxResults),
			WithResultCache(settings.SearchCacheSize, settings.SearchCacheTTL),
		),
		lock:     NewSyncLock(settings.CacheDir),
		outcomes: make(map[string]Outcome),
		syncedAt: make(map[string]time.Time),
	}, nil
}

// Initialize publishes cached chunks, runs the startup sync and starts the
// sync schedule.
//
// Only one process per cache directory syncs at startup. The others wait for
// it (up to the lock timeout) and then pick up its results from the cache.
func (s *Service) Initialize(ctx context.Context) error {
	if n := s.collector.LoadCached(); n > 0 {
		slog.Info("Loaded cached documentation", "sources", n, "chunks", s.index.Len())
	}

	if s.settings.SyncOnStart {
		if err := s.startupSync(ctx); err != nil {
			return err
		}
	}

	if s.settings.SyncSchedule != "" {
		scheduler, err := NewScheduler(s.settings.SyncSchedule, s.scheduledSync)
		if err != nil {
			return err
		}
		s.scheduler = scheduler
		s.scheduler.Start()
		slog.Info("Scheduled background sync", "schedule", s.settings.SyncSchedule)
	}

	return nil
}

// Start publishes cached chunks right away and runs the rest of Initialize in
// the background, so the service can answer searches before the startup sync
// completes. Close stops it.
func (s *Service) Start() {
	if n := s.collector.LoadCached(); n > 0 {
		slog.Info("Loaded cached documentation", "sources", n, "chunks", s.index.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Initialize(ctx); err != nil {
			slog.Error("Documentation initialization failed", "error", err)
		}
	}()
}

func (s *Service) startupSync(ctx context.Context) error {
	acquired, err := s.lock.TryAcquire()
	if err != nil {
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}

	if acquired {
		slog.Info("Acquired sync leader lock, starting sync")
		if _, err := s.Sync(ctx, "", false); err != nil {
			slog.Error("Sync failed", "error", err)
		}
		if err := s.lock.Release(); err != nil {
			slog.Error("Failed to release sync lock", "error", err)
		}
		return nil
	}

	slog.Info("Another instance is syncing, waiting for completion")
	if err := s.lock.Wait(ctx, s.settings.LockTimeout); err != nil {
		slog.Warn("Timeout waiting for sync, using cached documentation", "error", err)
		return nil
	}
	if n := s.collector.ReloadCached(); n > 0 {
		slog.Info("Loaded documentation synced by another instance", "sources", n, "chunks", s.index.Len())
	}
	return nil
}

func (s *Service) scheduledSync(ctx context.Context) {
	outcomes, err := s.Sync(ctx, "", false)
	if err != nil {
		slog.Error("Scheduled sync failed", "error", err)
		return
	}
	for _, out := range outcomes {
		slog.Debug("Scheduled sync outcome", "outcome", out.String())
	}
}

// Sync refreshes sourceID, or all sources when empty, and records outcomes.
func (s *Service) Sync(ctx context.Context, sourceID string, force bool) ([]Outcome, error) {
	outcomes, err := s.collector.Sync(ctx, sourceID, force)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	for _, out := range outcomes {
		s.outcomes[out.SourceID] = out
		s.syncedAt[out.SourceID] = now
	}
	s.mu.Unlock()

	return outcomes, nil
}

// Search runs a keyword query against the in-memory index.
func (s *Service) Search(query string, opts SearchOptions) (*SearchResult, error) {
	return s.searcher.Search(query, opts)
}

// ReadDoc returns the cached chunks of one page in document order.
// The result is empty if no loaded source holds the page.
func (s *Service) ReadDoc(url string) ([]domain.Chunk, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidArgument)
	}
	return s.index.PageChunks(domain.SourceIDs(s.sources), url), nil
}

// ClearCache deletes the persisted entry of sourceID, or of all sources when
// empty. The in-memory index is left as is.
func (s *Service) ClearCache(sourceID string) error {
	if sourceID == "" {
		return s.cache.ClearAll(domain.SourceIDs(s.sources))
	}
	if _, err := domain.LookupSource(s.sources, sourceID); err != nil {
		return err
	}
	return s.cache.Clear(sourceID)
}

// Sources returns the status of every source in canonical order.
func (s *Service) Sources() []SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]SourceStatus, len(s.sources))
	for i, src := range s.sources {
		st := SourceStatus{
			Source: src,
			Loaded: s.index.Has(src.ID),
			Chunks: s.index.Count(src.ID),
		}
		if out, ok := s.outcomes[src.ID]; ok {
			st.LastOutcome = &out
			st.LastSync = s.syncedAt[src.ID]
		}
		statuses[i] = st
	}
	return statuses
}

// IsLoaded returns true if sourceID, or any source when empty, is in the index.
func (s *Service) IsLoaded(sourceID string) bool {
	if sourceID != "" {
		return s.index.Has(sourceID)
	}
	for _, src := range s.sources {
		if s.index.Has(src.ID) {
			return true
		}
	}
	return false
}

// SourceList returns the configured sources.
func (s *Service) SourceList() []domain.Source {
	return s.sources
}

// Close stops background work.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		s.cancel = nil
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}
	return s.lock.Release()
}
