package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultFetchTimeout bounds a single HTTP attempt.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchRetries is the number of retries after a failed attempt.
	DefaultFetchRetries = 1

	// MaxFetchRetries caps retries so a failing page never loops.
	MaxFetchRetries = 1

	// DefaultRetryDelay is the pause before a retry.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxBodySize caps a single response body (16MB).
	DefaultMaxBodySize = 16 * 1024 * 1024

	// DefaultUserAgent identifies the fetcher to documentation hosts.
	DefaultUserAgent = "tossdocs-mcp/1.0"
)

// Fetcher retrieves raw document content.
type Fetcher interface {
	// Fetch returns the body of url. Errors wrap domain.ErrFetch.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// Retryable returns true for statuses that may succeed on a second attempt.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// HTTPFetcher fetches documents over HTTP with a per-attempt timeout, at most
// one retry and an optional per-host rate limit.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	retries     int
	retryDelay  time.Duration
	maxBodySize int64
	userAgent   string
	limiter     *HostLimiter
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchTimeout sets the timeout of a single attempt.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRetries sets the number of retries, clamped to [0, MaxFetchRetries].
func WithRetries(n int) FetcherOption {
	return func(f *HTTPFetcher) {
		f.retries = max(0, min(n, MaxFetchRetries))
	}
}

// WithRetryDelay sets the pause before a retry.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.retryDelay = d
	}
}

// WithRateLimit limits requests per second to each host. Zero disables limiting.
func WithRateLimit(rps float64) FetcherOption {
	return func(f *HTTPFetcher) {
		if rps > 0 {
			f.limiter = NewHostLimiter(rps)
		} else {
			f.limiter = nil
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize caps the response body size.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{},
		timeout:     DefaultFetchTimeout,
		retries:     DefaultFetchRetries,
		retryDelay:  DefaultRetryDelay,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves url. A failed attempt is retried at most once unless the
// server answered with a non-retryable status.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid URL %q", domain.ErrFetch, rawURL)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying fetch", "url", rawURL, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, rawURL, ctx.Err())
			case <-time.After(f.retryDelay):
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, u.Host); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, rawURL, err)
			}
		}

		body, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrFetch, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/markdown, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("body of %s exceeds %d bytes", rawURL, f.maxBodySize)
	}

	return body, nil
}

// HostLimiter applies a token bucket per host so pages on the same host are
// spaced out while different hosts proceed independently.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

// NewHostLimiter creates a HostLimiter allowing rps requests per second per host.
func NewHostLimiter(rps float64) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.rps), 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
