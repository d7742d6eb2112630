// Package search implements the Search Engine (spec.md §4.10): query
// generation and deduplication, and the execution loop against the
// rewards-bearing search box. The mobile retry loop around Runner.Run
// lives in internal/pipeline.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kestrelops/rewardsbot/internal/rng"
)

// fallbackLexicon is the local lexicon used when every external source
// fails (spec.md §4.10 sourcing step 3).
var fallbackLexicon = []string{
	"weather forecast this week", "best pasta recipes", "top movies this year",
	"how to fix a leaky faucet", "latest phone releases", "easy workout routine",
	"cheap flights to europe", "gardening tips for beginners", "new music releases",
	"history of the roman empire", "how does photosynthesis work", "stock market news today",
	"healthy breakfast ideas", "how to train a puppy", "best hiking trails nearby",
}

// TrendsSource fetches locale-appropriate trending topics. A real
// implementation calls an external trends API; cachedTrends wraps it
// with hourly caching.
type TrendsSource interface {
	Fetch(ctx context.Context, locale string) ([]string, error)
}

// HTTPTrendsSource hits a JSON trends endpoint and extracts topic
// strings via a gjson path, tolerating whatever shape of response the
// endpoint returns (spec.md §4.10 step 1).
type HTTPTrendsSource struct {
	client   *http.Client
	endpoint string
	jsonPath string
}

// NewHTTPTrendsSource returns a source hitting endpoint, extracting an
// array of strings at jsonPath (a gjson path, e.g. "trends.#.title").
func NewHTTPTrendsSource(endpoint, jsonPath string) *HTTPTrendsSource {
	return &HTTPTrendsSource{
		client:   &http.Client{Timeout: 8 * time.Second},
		endpoint: endpoint,
		jsonPath: jsonPath,
	}
}

func (s *HTTPTrendsSource) Fetch(ctx context.Context, locale string) ([]string, error) {
	url := fmt.Sprintf("%s?locale=%s", s.endpoint, locale)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("search: build trends request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: fetch trends: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: trends status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("search: read trends body: %w", err)
	}
	result := gjson.GetBytes(body, s.jsonPath)
	if !result.Exists() {
		return nil, fmt.Errorf("search: trends path %q not found", s.jsonPath)
	}
	var topics []string
	result.ForEach(func(_, value gjson.Result) bool {
		if t := strings.TrimSpace(value.String()); t != "" {
			topics = append(topics, t)
		}
		return true
	})
	return topics, nil
}

// HeadlineSource derives search phrases from recent headlines via
// simple transforms (spec.md §4.10 step 2): "what is X", "X vs Y".
type HeadlineSource struct {
	headlines []string
}

func NewHeadlineSource(headlines []string) *HeadlineSource {
	return &HeadlineSource{headlines: headlines}
}

func (h *HeadlineSource) Fetch(_ context.Context, _ string) ([]string, error) {
	var out []string
	for _, hl := range h.headlines {
		hl = strings.TrimSpace(hl)
		if hl == "" {
			continue
		}
		out = append(out, hl, "what is "+hl)
	}
	if len(h.headlines) >= 2 {
		out = append(out, h.headlines[0]+" vs "+h.headlines[1])
	}
	return out, nil
}

// cachedTrends memoizes one TrendsSource's output per locale for an
// hour, per spec.md §4.10's "cached per hour" requirement.
type cachedTrends struct {
	mu      sync.Mutex
	src     TrendsSource
	ttl     time.Duration
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	topics    []string
	expiresAt time.Time
}

func newCachedTrends(src TrendsSource, ttl time.Duration) *cachedTrends {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &cachedTrends{src: src, ttl: ttl, cache: make(map[string]cacheEntry)}
}

func (c *cachedTrends) Fetch(ctx context.Context, locale string) ([]string, error) {
	if c.src == nil {
		return nil, fmt.Errorf("search: no trends source configured")
	}
	c.mu.Lock()
	if e, ok := c.cache[locale]; ok && time.Now().Before(e.expiresAt) {
		topics := e.topics
		c.mu.Unlock()
		return topics, nil
	}
	c.mu.Unlock()

	topics, err := c.src.Fetch(ctx, locale)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[locale] = cacheEntry{topics: topics, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return topics, nil
}

// QueryGenerator produces deduplicated search queries from the
// prioritized sources in spec.md §4.10.
type QueryGenerator struct {
	trends    *cachedTrends
	headlines TrendsSource
	rng       *rng.Source
}

// NewQueryGenerator wires trends (cached hourly), headlines, and a
// local fallback lexicon into one generator.
func NewQueryGenerator(trends TrendsSource, headlines TrendsSource, r *rng.Source) *QueryGenerator {
	return &QueryGenerator{trends: newCachedTrends(trends, time.Hour), headlines: headlines, rng: r}
}

// Generate produces up to n distinct, deduplicated queries.
func (g *QueryGenerator) Generate(ctx context.Context, locale string, n int) []string {
	var candidates []string

	if g.trends != nil {
		if topics, err := g.trends.Fetch(ctx, locale); err == nil {
			candidates = append(candidates, topics...)
		}
	}
	if g.headlines != nil {
		if more, err := g.headlines.Fetch(ctx, locale); err == nil {
			candidates = append(candidates, more...)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, fallbackLexicon...)
	}

	rng.Shuffle(g.rng, candidates)

	out := Dedup(candidates)
	if len(out) > n {
		out = out[:n]
	}
	for len(out) < n && len(fallbackLexicon) > 0 {
		extra := rng.Pick(g.rng, fallbackLexicon)
		merged := Dedup(append(append([]string{}, out...), extra))
		if len(merged) > len(out) {
			out = merged
		} else {
			break
		}
	}
	return out
}

// Dedup removes case-insensitive, whitespace-collapsed duplicates, and
// drops any query whose normalised form shares the same leading
// 3-token sequence as one already kept (spec.md §4.10's
// similarity-bounded dedup).
func Dedup(queries []string) []string {
	seen := make(map[string]bool)
	var leadSeqs [][]string
	var out []string

	for _, q := range queries {
		norm := normalize(q)
		if norm == "" || seen[norm] {
			continue
		}
		tokens := strings.Fields(norm)
		lead := leadingTokens(tokens, 3)

		dup := false
		for _, prior := range leadSeqs {
			if sameSequence(prior, lead) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		seen[norm] = true
		leadSeqs = append(leadSeqs, lead)
		out = append(out, q)
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func leadingTokens(tokens []string, n int) []string {
	if len(tokens) < n {
		return tokens
	}
	return tokens[:n]
}

func sameSequence(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
