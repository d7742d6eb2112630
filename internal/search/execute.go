package search

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// Persona selects the viewport/UA/headers a search run must use
// throughout; switching personas always implies a fresh session
// (spec.md §4.10's persona constraint).
type Persona string

const (
	Desktop Persona = "desktop"
	Mobile  Persona = "mobile"
)

// ProgressFetcher refetches the dashboard's point-progress counters so
// the execution loop can tell whether a query actually earned points.
type ProgressFetcher func(ctx context.Context) (pointProgress, pointProgressMax int, err error)

// Config tunes the execution loop.
type Config struct {
	SearchEndpoint       string
	RefetchEveryNQueries int // k
	StallBreakAfter      int // S
	DwellMinSeconds      float64
	DwellMaxSeconds      float64
}

func (c Config) withDefaults() Config {
	if c.RefetchEveryNQueries <= 0 {
		c.RefetchEveryNQueries = 3
	}
	if c.StallBreakAfter <= 0 {
		c.StallBreakAfter = 5
	}
	if c.DwellMaxSeconds <= 0 {
		c.DwellMinSeconds, c.DwellMaxSeconds = 2, 6
	}
	return c
}

// Runner drives one persona's search session to completion.
type Runner struct {
	cfg    Config
	rng    *rng.Source
	log    *logrus.Entry
	gen    *QueryGenerator
}

// NewRunner returns a Runner.
func NewRunner(cfg Config, gen *QueryGenerator, r *rng.Source, log *logrus.Entry) *Runner {
	return &Runner{cfg: cfg.withDefaults(), rng: r, log: log, gen: gen}
}

// Result reports how the loop ended.
type Result struct {
	QueriesIssued int
	Completed     bool // M reached 0
	Stalled       bool
}

// Run executes the loop described in spec.md §4.10 for one persona.
// locale picks the trending-topics feed; progress must report the
// dashboard's current/max counters for this persona's search activity.
func (r *Runner) Run(ctx context.Context, page browser.Page, locale string, progress ProgressFetcher) (Result, error) {
	current, max, err := progress(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("search: initial progress fetch: %w", err)
	}
	remaining := max - current
	if remaining <= 0 {
		return Result{Completed: true}, nil
	}

	queries := r.gen.Generate(ctx, locale, 60)
	var res Result
	stallCount := 0
	lastProgress := current

	for i := 0; i < len(queries) && remaining > 0; i++ {
		q := queries[i]
		target := r.cfg.SearchEndpoint + "?q=" + url.QueryEscape(q)
		if err := page.Goto(ctx, target); err != nil {
			return res, fmt.Errorf("search: navigate query %d: %w", i, err)
		}
		if _, err := browser.SmartWait(ctx, page, "#b_results", r.rng); err != nil {
			r.log.WithError(err).Debug("search: results wait errored, continuing")
		}
		res.QueriesIssued++

		dwell := time.Duration(r.rng.FloatIn(r.cfg.DwellMinSeconds, r.cfg.DwellMaxSeconds) * float64(time.Second))
		select {
		case <-time.After(dwell):
		case <-ctx.Done():
			return res, ctx.Err()
		}

		if res.QueriesIssued%r.cfg.RefetchEveryNQueries == 0 {
			cur, mx, err := progress(ctx)
			if err != nil {
				r.log.WithError(err).Warn("search: progress refetch failed")
				continue
			}
			remaining = mx - cur
			if remaining <= 0 {
				res.Completed = true
				return res, nil
			}
			if cur == lastProgress {
				stallCount++
			} else {
				stallCount = 0
			}
			lastProgress = cur
			if stallCount >= r.cfg.StallBreakAfter {
				res.Stalled = true
				return res, fmt.Errorf("search: progress stalled for %d refetches with %d points remaining", stallCount, remaining)
			}
		}
	}

	final, finalMax, err := progress(ctx)
	if err == nil && final >= finalMax {
		res.Completed = true
	}
	return res, nil
}
