package docs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

// MockFetcher serves configured responses per URL and records every call.
// It tracks how many fetches are in flight at once.
// This is exported for use in tests of other packages.
type MockFetcher struct {
	mu          sync.Mutex
	responses   map[string]MockResponse
	calls       []string
	inFlight    int
	maxInFlight int
}

// MockResponse defines the result of fetching one URL.
type MockResponse struct {
	Body  []byte
	Err   error
	Delay time.Duration
}

// NewMockFetcher creates a new mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		responses: make(map[string]MockResponse),
	}
}

// AddResponse serves body for url.
func (m *MockFetcher) AddResponse(url, body string) {
	m.SetResponse(url, MockResponse{Body: []byte(body)})
}

// AddError fails every fetch of url with err.
func (m *MockFetcher) AddError(url string, err error) {
	m.SetResponse(url, MockResponse{Err: err})
}

// SetResponse replaces the response configured for url.
func (m *MockFetcher) SetResponse(url string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[url] = resp
}

// Fetch returns the configured response for url after its delay.
func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	resp, ok := m.responses[url]
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, url, ctx.Err())
		case <-time.After(resp.Delay):
		}
	}

	if !ok {
		return nil, fmt.Errorf("%w: no mock response configured for: %s", domain.ErrFetch, url)
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Body, nil
}

// GetCalls returns all fetched URLs in call order.
func (m *MockFetcher) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times url was fetched.
func (m *MockFetcher) CallCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == url {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of concurrent fetches observed.
func (m *MockFetcher) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// ResetCalls forgets recorded calls and the in-flight high-water mark.
func (m *MockFetcher) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.maxInFlight = 0
}

// MustHaveFetched fails the test unless url was fetched exactly want times.
func (m *MockFetcher) MustHaveFetched(t *testing.T, url string, want int) {
	t.Helper()
	if got := m.CallCount(url); got != want {
		t.Fatalf("Expected %d fetches of %s, got %d", want, url, got)
	}
}
