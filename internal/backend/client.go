package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fitsync/internal/storage"
)

// ErrRateLimited is returned when a resource is fetched more often than
// the client's budget allows.
var ErrRateLimited = errors.New("backend: rate limit exceeded")

// Fetcher retrieves the raw representation of a backend entity
// collection (students, plans, messages, ...).
type Fetcher interface {
	Fetch(ctx context.Context, resource string) ([]byte, error)
}

// Client is the read side of the backend collaborator: a read-through
// cache over a Fetcher, guarded by a sliding-window rate limiter so a
// re-rendering UI cannot hammer the transport.
type Client struct {
	fetcher Fetcher
	cache   *storage.Cache
	limiter *RateLimiter
	ttl     time.Duration
}

// NewClient wraps fetcher with a session cache (entries live for ttl,
// enforced on read) and a limiter of maxPerMinute calls per resource.
func NewClient(fetcher Fetcher, ttl time.Duration, maxPerMinute int) *Client {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxPerMinute <= 0 {
		maxPerMinute = 100
	}
	return &Client{
		fetcher: fetcher,
		cache:   storage.NewCache(),
		limiter: NewRateLimiter(maxPerMinute, time.Minute),
		ttl:     ttl,
	}
}

// Get returns the cached representation of resource, fetching through
// on a miss. force bypasses the cache but not the rate limiter.
func (c *Client) Get(ctx context.Context, resource string, force bool) ([]byte, error) {
	if !force {
		if cached, ok := c.cache.Get(resource); ok {
			return cached.([]byte), nil
		}
	}

	if !c.limiter.Allow(resource) {
		return nil, ErrRateLimited
	}

	data, err := c.fetcher.Fetch(ctx, resource)
	if err != nil {
		return nil, err
	}
	c.cache.Set(resource, data, c.ttl)
	return data, nil
}

// Invalidate drops cached entries matching pattern, forcing the next
// read through to the backend.
func (c *Client) Invalidate(pattern string) {
	c.cache.Invalidate(pattern)
}

// HTTPFetcher reads entity collections from the backend REST API.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPFetcher configures reads against baseURL/<resource>.
func NewHTTPFetcher(baseURL, apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: httpRequestTimeout},
	}
}

// Fetch performs the GET and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, resource string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+resource, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http %d", resource, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// StaticFetcher serves canned JSON documents, standing in for the real
// API alongside the delivery simulator.
type StaticFetcher map[string][]byte

// Fetch returns the canned document for resource.
func (f StaticFetcher) Fetch(_ context.Context, resource string) ([]byte, error) {
	data, ok := f[resource]
	if !ok {
		return nil, fmt.Errorf("fetch %s: unknown resource", resource)
	}
	return data, nil
}
