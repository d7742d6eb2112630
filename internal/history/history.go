// Package history implements the Account-History Store (spec.md §2,
// component C4): aggregated per-account run history and statistics
// consumed by the Dashboard Gateway's /api/account-history,
// /api/account-stats, /api/stats/* family.
//
// The default backend is one JSON file per account, mirroring the
// Job-State Store's persistence style. A Postgres-backed
// implementation (internal/history/postgres) is available for
// operators running a shared dashboard against a fleet of workers;
// Store is the common interface both satisfy.
package history

import (
	"context"
	"time"
)

// Run is one completed (or failed) pass of the Per-Account Pipeline.
type Run struct {
	RunID       string    `json:"run_id"`
	Account     string    `json:"account"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Success     bool      `json:"success"`
	TotalPoints int       `json:"total_points"`
	Activities  map[string]int `json:"activities,omitempty"` // activity kind -> points earned
	Errors      []string  `json:"errors,omitempty"`
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration {
	if r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// AccountStats summarizes one account's run history.
type AccountStats struct {
	Account        string     `json:"account"`
	TotalRuns      int        `json:"total_runs"`
	SuccessfulRuns int        `json:"successful_runs"`
	FailedRuns     int        `json:"failed_runs"`
	TotalPoints    int        `json:"total_points"`
	LastRun        *Run       `json:"last_run,omitempty"`
	AveragePoints  float64    `json:"average_points"`
}

// DailyStat is one day's aggregate across all accounts.
type DailyStat struct {
	Date        string `json:"date"`
	Runs        int    `json:"runs"`
	TotalPoints int    `json:"total_points"`
	Failures    int    `json:"failures"`
}

// GlobalStats summarizes the whole fleet.
type GlobalStats struct {
	Accounts       int `json:"accounts"`
	TotalRuns      int `json:"total_runs"`
	TotalPoints    int `json:"total_points"`
	SuccessfulRuns int `json:"successful_runs"`
	FailedRuns     int `json:"failed_runs"`
}

// Store is the Account-History Store contract. Implementations must be
// safe for concurrent use.
type Store interface {
	RecordRun(ctx context.Context, run Run) error
	History(ctx context.Context, account string, limit int) ([]Run, error)
	Stats(ctx context.Context, account string) (AccountStats, error)
	Accounts(ctx context.Context) ([]string, error)
	HistoricalDaily(ctx context.Context, days int) ([]DailyStat, error)
	ActivityBreakdown(ctx context.Context, days int) (map[string]int, error)
	GlobalStats(ctx context.Context) (GlobalStats, error)
	Close() error
}
