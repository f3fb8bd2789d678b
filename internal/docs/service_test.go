package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-tossdocs-server/internal/config"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

func testDocsSettings(t *testing.T) *config.DocsSettings {
	t.Helper()
	return &config.DocsSettings{
		CacheDir:        t.TempDir(),
		FetchTimeout:    5 * time.Second,
		Concurrency:     4,
		MaxChunkLen:     DefaultMaxChunkLen,
		MaxResults:      DefaultMaxResults,
		SyncOnStart:     true,
		LockTimeout:     time.Second,
		SearchCacheSize: 16,
		SearchCacheTTL:  time.Minute,
	}
}

func serveSeedPages(f *MockFetcher) {
	f.AddResponse(testManifestURL, "# 앱인토스\n\n- [A 페이지](/a.md): 소개\n- [B 페이지](https://docs.example.com/b.md)\n")
	f.AddResponse(testPageA, "# Alpha\n\n토스페이먼츠 연동 안내\n\n## Setup\n\nInstall the SDK.\n")
	f.AddResponse(testPageB, "# Beta\n\n결제 취소 방법\n")
}

func newTestService(t *testing.T, settings *config.DocsSettings, fetcher *MockFetcher) *Service {
	t.Helper()
	svc, err := NewService(settings, WithSources([]domain.Source{testSeedSource()}), WithFetcher(fetcher))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNewService_Errors(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("Expected error for nil settings")
	}

	settings := testDocsSettings(t)
	if _, err := NewService(settings, WithSources([]domain.Source{})); err == nil {
		t.Error("Expected error for empty sources")
	}

	dup := []domain.Source{testSeedSource(), testSeedSource()}
	if _, err := NewService(settings, WithSources(dup)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for duplicate sources, got %v", err)
	}

	bad := []domain.Source{{ID: "x", ManifestURL: testManifestURL, Kind: "weird"}}
	if _, err := NewService(settings, WithSources(bad)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for invalid source, got %v", err)
	}
}

func TestNewService_CreatesCacheDir(t *testing.T) {
	settings := testDocsSettings(t)
	settings.CacheDir = filepath.Join(settings.CacheDir, "nested", "cache")

	newTestService(t, settings, NewMockFetcher())

	if info, err := os.Stat(settings.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("Expected cache directory to exist: %v", err)
	}
}

func TestService_DefaultSources(t *testing.T) {
	svc, err := NewService(testDocsSettings(t))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	defer svc.Close()

	if got := len(svc.SourceList()); got != len(domain.DefaultSources()) {
		t.Errorf("Expected %d default sources, got %d", len(domain.DefaultSources()), got)
	}
	if svc.IsLoaded("") {
		t.Error("Fresh service should have nothing loaded")
	}
}

func TestService_InitializeLeaderSyncs(t *testing.T) {
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	svc := newTestService(t, testDocsSettings(t), fetcher)

	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !svc.IsLoaded(domain.SourceAppsInToss) {
		t.Fatal("Expected source to be loaded after startup sync")
	}
	fetcher.MustHaveFetched(t, testManifestURL, 1)

	result, err := svc.Search("토스페이먼츠", SearchOptions{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Stage != StageExact || result.Total != 1 {
		t.Errorf("Search = stage %s total %d, want exact 1", result.Stage, result.Total)
	}

	statuses := svc.Sources()
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 status, got %d", len(statuses))
	}
	st := statuses[0]
	if !st.Loaded || st.Chunks == 0 {
		t.Errorf("Status = %+v, want loaded with chunks", st)
	}
	if st.LastOutcome == nil || st.LastOutcome.Status != StatusUpdated {
		t.Errorf("LastOutcome = %+v, want updated", st.LastOutcome)
	}
	if st.LastSync.IsZero() {
		t.Error("LastSync should be set")
	}

	if svc.lock.Held() {
		t.Error("Leader should release the sync lock after syncing")
	}
}

func TestService_InitializeWarmStartWithoutSync(t *testing.T) {
	settings := testDocsSettings(t)

	seeder := NewMockFetcher()
	serveSeedPages(seeder)
	first := newTestService(t, settings, seeder)
	if err := first.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	settings2 := *settings
	settings2.SyncOnStart = false
	offline := NewMockFetcher()
	second := newTestService(t, &settings2, offline)
	if err := second.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !second.IsLoaded(domain.SourceAppsInToss) {
		t.Error("Expected cached chunks to be published without network access")
	}
	if len(offline.GetCalls()) != 0 {
		t.Errorf("Expected no fetches, got %d", len(offline.GetCalls()))
	}
	if st := second.Sources()[0]; st.LastOutcome != nil {
		t.Errorf("No sync ran, LastOutcome = %+v", st.LastOutcome)
	}
}

func TestService_InitializeFollowerWaitsForLeader(t *testing.T) {
	settings := testDocsSettings(t)
	settings.LockTimeout = 5 * time.Second

	leaderLock := NewSyncLock(settings.CacheDir)
	acquired, err := leaderLock.TryAcquire()
	if err != nil || !acquired {
		t.Fatalf("TryAcquire = %v, %v", acquired, err)
	}

	seeder := NewMockFetcher()
	serveSeedPages(seeder)
	cache := NewCache(settings.CacheDir, DefaultMaxChunkLen)
	leader := NewCollector([]domain.Source{testSeedSource()}, seeder, cache, NewChunker(), NewIndex(mustWordAnalyzer(t)))

	// The leader writes the cache while the follower waits, then releases the lock.
	go func() {
		time.Sleep(200 * time.Millisecond)
		_, _ = leader.Sync(context.Background(), "", false)
		_ = leaderLock.Release()
	}()

	follower := NewMockFetcher()
	svc := newTestService(t, settings, follower)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !svc.IsLoaded(domain.SourceAppsInToss) {
		t.Error("Follower should load the leader's results from the cache")
	}
	if len(follower.GetCalls()) != 0 {
		t.Errorf("Follower should not fetch, got %d calls", len(follower.GetCalls()))
	}
}

func TestService_InitializeFollowerTimeout(t *testing.T) {
	settings := testDocsSettings(t)
	settings.LockTimeout = 100 * time.Millisecond

	holder := NewSyncLock(settings.CacheDir)
	if ok, err := holder.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire = %v, %v", ok, err)
	}
	defer holder.Release()

	fetcher := NewMockFetcher()
	svc := newTestService(t, settings, fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize should not fail on lock timeout: %v", err)
	}
	if len(fetcher.GetCalls()) != 0 {
		t.Errorf("Expected no fetches, got %d", len(fetcher.GetCalls()))
	}
	if svc.IsLoaded("") {
		t.Error("Nothing should be loaded")
	}
}

func TestService_InitializeInvalidSchedule(t *testing.T) {
	settings := testDocsSettings(t)
	settings.SyncOnStart = false
	settings.SyncSchedule = "every tuesday"

	svc := newTestService(t, settings, NewMockFetcher())
	if err := svc.Initialize(context.Background()); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestService_InitializeStartsSchedule(t *testing.T) {
	settings := testDocsSettings(t)
	settings.SyncOnStart = false
	settings.SyncSchedule = "@every 1s"

	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	svc := newTestService(t, settings, fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !svc.IsLoaded(domain.SourceAppsInToss) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if !svc.IsLoaded(domain.SourceAppsInToss) {
		t.Error("Scheduled sync should load the source")
	}

	if err := svc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if svc.scheduler != nil {
		t.Error("Close should stop the scheduler")
	}
}

func TestService_Sync(t *testing.T) {
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	svc := newTestService(t, testDocsSettings(t), fetcher)

	if _, err := svc.Sync(context.Background(), "nope", false); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}

	outcomes, err := svc.Sync(context.Background(), domain.SourceAppsInToss, false)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != StatusUpdated {
		t.Fatalf("Outcomes = %+v", outcomes)
	}

	fetcher.SetResponse(testManifestURL, MockResponse{Err: errors.New("boom")})
	outcomes, _ = svc.Sync(context.Background(), "", false)
	if outcomes[0].Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", outcomes[0].Status)
	}

	st := svc.Sources()[0]
	if st.LastOutcome == nil || st.LastOutcome.Status != StatusFailed {
		t.Errorf("LastOutcome = %+v, want failed", st.LastOutcome)
	}
	if !st.Loaded {
		t.Error("Failed sync should keep the previous chunks")
	}
}

func TestService_ReadDoc(t *testing.T) {
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	svc := newTestService(t, testDocsSettings(t), fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if _, err := svc.ReadDoc("  "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for empty URL, got %v", err)
	}

	chunks, err := svc.ReadDoc(testPageA)
	if err != nil {
		t.Fatalf("ReadDoc failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Heading() != "Alpha" || chunks[0].URL != testPageA {
		t.Errorf("Chunk = %+v", chunks[0])
	}

	missing, err := svc.ReadDoc(testDocsHost + "/missing.md")
	if err != nil || len(missing) != 0 {
		t.Errorf("ReadDoc(missing) = %d chunks, %v", len(missing), err)
	}
}

func TestService_ClearCache(t *testing.T) {
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	settings := testDocsSettings(t)
	svc := newTestService(t, settings, fetcher)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	path := filepath.Join(settings.CacheDir, domain.SourceAppsInToss+CacheFileSuffix)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected cache file: %v", err)
	}

	if err := svc.ClearCache("nope"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}

	if err := svc.ClearCache(domain.SourceAppsInToss); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected cache file to be removed, got %v", err)
	}
	if !svc.IsLoaded(domain.SourceAppsInToss) {
		t.Error("ClearCache should not touch the index")
	}

	// Without a cache entry the next sync refetches every page.
	if _, err := svc.Sync(context.Background(), "", false); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	fetcher.MustHaveFetched(t, testPageA, 2)

	if err := svc.ClearCache(""); err != nil {
		t.Errorf("ClearCache(all) failed: %v", err)
	}
}

func TestService_StartRunsInBackground(t *testing.T) {
	settings := testDocsSettings(t)

	seeder := NewMockFetcher()
	serveSeedPages(seeder)
	first := newTestService(t, settings, seeder)
	if err := first.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// The second instance publishes the cache immediately, then syncs.
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	fetcher.SetResponse(testManifestURL, MockResponse{Body: []byte("- [A 페이지](/a.md)\n- [B 페이지](/b.md)\n"), Delay: 200 * time.Millisecond})
	svc := newTestService(t, settings, fetcher)

	svc.Start()
	if !svc.IsLoaded(domain.SourceAppsInToss) {
		t.Error("Start should publish cached chunks before returning")
	}

	deadline := time.Now().Add(3 * time.Second)
	for svc.Sources()[0].LastOutcome == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if out := svc.Sources()[0].LastOutcome; out == nil || out.Status != StatusUpdated {
		t.Errorf("LastOutcome = %+v, want updated after background sync", out)
	}

	if err := svc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestService_CloseCancelsStartupSync(t *testing.T) {
	fetcher := NewMockFetcher()
	serveSeedPages(fetcher)
	fetcher.SetResponse(testManifestURL, MockResponse{Body: []byte("- [A](/a.md)\n"), Delay: time.Minute})
	svc := newTestService(t, testDocsSettings(t), fetcher)

	svc.Start()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = svc.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel the startup sync")
	}
	if svc.IsLoaded(domain.SourceAppsInToss) {
		t.Error("Canceled sync should not publish anything")
	}
}
