// Package antidetect implements the Anti-Detection Layer (spec.md
// §4.6): a network request-header policy and an in-page init-script
// template, applied as a whole to a browser.Session before any
// navigation happens. Partial application is itself a fingerprint, so
// both surfaces are installed together by Install.
package antidetect

import (
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// criticalRequestTypes pass through untouched and are never throttled.
var criticalRequestTypes = map[string]bool{
	"image":      true,
	"media":      true,
	"font":       true,
}

// headerOrderedTypes get the fixed Chrome-mimicking header rewrite.
var headerOrderedTypes = map[string]bool{
	"document":   true,
	"xhr":        true,
	"fetch":      true,
	"script":     true,
	"stylesheet": true,
}

// weightedLanguages mirrors real-world accept-language distribution
// weighting, keyed by the configured primary locale.
var weightedLanguages = map[string][]string{
	"en-US": {"en-US,en;q=0.9", "en-US,en;q=0.8"},
	"en-GB": {"en-GB,en;q=0.9", "en-GB,en-US;q=0.8,en;q=0.7"},
}

// HeaderPolicy rewrites one outgoing request's headers in the fixed
// order spec.md §4.6 mandates: sec-ch-ua* first, upgrade-insecure-
// requests for documents, user-agent, accept, sec-fetch-*,
// accept-encoding, accept-language, referer last.
type HeaderPolicy struct {
	fp     browser.Fingerprint
	rng    *rng.Source
	locale string
}

// NewHeaderPolicy builds a HeaderPolicy bound to fp.
func NewHeaderPolicy(fp browser.Fingerprint, r *rng.Source) *HeaderPolicy {
	return &HeaderPolicy{fp: fp, rng: r, locale: fp.Locale}
}

// Rewrite returns the ordered header list for one request. requestType
// is one of Chrome's resource-type strings (document, xhr, fetch,
// script, stylesheet, image, media, font, ...). referer may be empty.
func (p *HeaderPolicy) Rewrite(requestType, accept, referer string) []browser.Header {
	if criticalRequestTypes[requestType] {
		return nil // pass through untouched
	}
	if !headerOrderedTypes[requestType] {
		return nil
	}

	var headers []browser.Header
	for k, v := range p.fp.ClientHints {
		headers = append(headers, browser.Header{Name: k, Value: v})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })

	if requestType == "document" {
		headers = append(headers, browser.Header{Name: "upgrade-insecure-requests", Value: "1"})
	}
	headers = append(headers, browser.Header{Name: "user-agent", Value: p.fp.UserAgent})
	if accept != "" {
		headers = append(headers, browser.Header{Name: "accept", Value: accept})
	}
	headers = append(headers,
		browser.Header{Name: "sec-fetch-site", Value: secFetchSite(requestType)},
		browser.Header{Name: "sec-fetch-mode", Value: secFetchMode(requestType)},
		browser.Header{Name: "sec-fetch-dest", Value: requestType},
		browser.Header{Name: "accept-encoding", Value: "gzip, deflate, br, zstd"},
	)

	langs := weightedLanguages[p.locale]
	if len(langs) == 0 {
		langs = []string{p.locale}
	}
	headers = append(headers, browser.Header{Name: "accept-language", Value: rng.Pick(p.rng, langs)})

	if referer != "" {
		headers = append(headers, browser.Header{Name: "referer", Value: referer})
	}
	return headers
}

func secFetchSite(requestType string) string {
	if requestType == "document" {
		return "none"
	}
	return "same-origin"
}

func secFetchMode(requestType string) string {
	switch requestType {
	case "document":
		return "navigate"
	case "script", "stylesheet":
		return "no-cors"
	default:
		return "cors"
	}
}

// Throttle rate-limits non-critical resource requests to a global
// minimum inter-request gap with small jitter, while letting critical
// resources through immediately (spec.md §4.6).
type Throttle struct {
	limiter *rate.Limiter
	rng     *rng.Source
}

// NewThrottle returns a Throttle enforcing a ~10ms minimum gap between
// non-critical requests.
func NewThrottle(r *rng.Source) *Throttle {
	const minGap = 10 * time.Millisecond
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
		rng:     r,
	}
}

// Delay reports how long the driver must hold requestType before
// sending it so the global minimum inter-request gap is respected.
// Critical resource types are never delayed.
func (t *Throttle) Delay(requestType string) time.Duration {
	if criticalRequestTypes[requestType] {
		return 0
	}
	d := t.limiter.Reserve().Delay()
	jitter := time.Duration(t.rng.FloatIn(0, 4)) * time.Millisecond
	return d + jitter
}
