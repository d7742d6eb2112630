package browser

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// staticFallbackVersion is used when the version feed cannot be reached
// and no cached value is still fresh. Bumped occasionally by hand; a
// stale-but-plausible version is far less detectable than none at all.
const staticFallbackVersion = "124.0.2478.97"

// versionFeedURL points at the public Edge stable-channel release feed.
const versionFeedURL = "https://edgeupdates.microsoft.com/api/products"

// EdgeVersionCache resolves a recent stable Edge/Chromium version string
// for user-agent and client-hint synthesis (spec.md §4.5), caching the
// result so the factory does not hit the network on every session
// build, and falling back to a static version if the feed is
// unreachable.
type EdgeVersionCache struct {
	httpClient *http.Client
	ttl        time.Duration

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
	inflight  chan struct{}
}

// NewEdgeVersionCache returns a cache with the given refresh interval.
// A non-positive ttl defaults to six hours.
func NewEdgeVersionCache(ttl time.Duration) *EdgeVersionCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &EdgeVersionCache{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		ttl:        ttl,
	}
}

// Version returns a cached or freshly fetched Edge version. On fetch
// failure it returns the last known-good cached version, or the static
// fallback if nothing has ever been fetched successfully.
func (c *EdgeVersionCache) Version() string {
	c.mu.Lock()
	if time.Now().Before(c.expiresAt) && c.cached != "" {
		v := c.cached
		c.mu.Unlock()
		return v
	}
	if c.inflight != nil {
		ch := c.inflight
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
		v := c.cached
		c.mu.Unlock()
		if v != "" {
			return v
		}
		return staticFallbackVersion
	}
	ch := make(chan struct{})
	c.inflight = ch
	fallback := c.cached
	c.mu.Unlock()

	version, err := c.fetch()

	c.mu.Lock()
	if err == nil && version != "" {
		c.cached = version
		c.expiresAt = time.Now().Add(c.ttl)
	}
	c.inflight = nil
	close(ch)
	result := c.cached
	c.mu.Unlock()

	if result != "" {
		return result
	}
	if fallback != "" {
		return fallback
	}
	return staticFallbackVersion
}

type edgeProduct struct {
	Product  string `json:"Product"`
	Releases []struct {
		Platform            string `json:"Platform"`
		ProductVersion      string `json:"ProductVersion"`
	} `json:"Releases"`
}

func (c *EdgeVersionCache) fetch() (string, error) {
	req, err := http.NewRequest(http.MethodGet, versionFeedURL, nil)
	if err != nil {
		return "", fmt.Errorf("browser: build version request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser: fetch edge version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser: version feed status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("browser: read version feed: %w", err)
	}
	var products []edgeProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return "", fmt.Errorf("browser: parse version feed: %w", err)
	}
	for _, p := range products {
		if p.Product != "Stable" {
			continue
		}
		for _, r := range p.Releases {
			if r.Platform == "Windows" && r.ProductVersion != "" {
				return r.ProductVersion, nil
			}
		}
	}
	return "", fmt.Errorf("browser: no stable windows release in feed")
}
