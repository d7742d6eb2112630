// Package postgres is the optional Postgres backend for the
// Account-History Store, for operators running a shared dashboard
// against a fleet of workers instead of one local file tree. Activated
// by setting the HISTORY_DSN environment variable; the file backend
// (internal/history.FileStore) remains the default.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kestrelops/rewardsbot/internal/history"
)

// Store implements history.Store against a PostgreSQL database.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, applies pending migrations, and returns a ready
// Store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history/postgres: connect: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, used by tests against
// go-sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) Close() error { return s.db.Close() }

type runRow struct {
	ID          string         `db:"id"`
	Account     string         `db:"account"`
	StartedAt   time.Time      `db:"started_at"`
	CompletedAt time.Time      `db:"completed_at"`
	Success     bool           `db:"success"`
	TotalPoints int            `db:"total_points"`
	Activities  []byte         `db:"activities"`
	Errors      pq.StringArray `db:"errors"`
}

func (r runRow) toRun() history.Run {
	run := history.Run{
		RunID:       r.ID,
		Account:     r.Account,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Success:     r.Success,
		TotalPoints: r.TotalPoints,
		Errors:      []string(r.Errors),
	}
	if len(r.Activities) > 0 {
		_ = json.Unmarshal(r.Activities, &run.Activities)
	}
	return run
}

func (s *Store) RecordRun(ctx context.Context, run history.Run) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	activitiesJSON, err := json.Marshal(run.Activities)
	if err != nil {
		return fmt.Errorf("history/postgres: marshal activities: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO account_runs (id, account, started_at, completed_at, success, total_points, activities, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.RunID, run.Account, run.StartedAt, run.CompletedAt, run.Success, run.TotalPoints,
		activitiesJSON, pq.Array(run.Errors))
	if err != nil {
		return fmt.Errorf("history/postgres: insert run: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, account string, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account, started_at, completed_at, success, total_points, activities, errors
		FROM account_runs WHERE account = $1 ORDER BY started_at DESC LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("history/postgres: select history: %w", err)
	}
	out := make([]history.Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRun())
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context, account string) (history.AccountStats, error) {
	stats := history.AccountStats{Account: account}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_points), 0), COUNT(*) FILTER (WHERE success)
		FROM account_runs WHERE account = $1
	`, account).Scan(&stats.TotalRuns, &stats.TotalPoints, &stats.SuccessfulRuns)
	if err != nil {
		return history.AccountStats{}, fmt.Errorf("history/postgres: stats: %w", err)
	}
	stats.FailedRuns = stats.TotalRuns - stats.SuccessfulRuns
	if stats.TotalRuns == 0 {
		return stats, nil
	}
	stats.AveragePoints = float64(stats.TotalPoints) / float64(stats.TotalRuns)

	var last runRow
	err = s.db.GetContext(ctx, &last, `
		SELECT id, account, started_at, completed_at, success, total_points, activities, errors
		FROM account_runs WHERE account = $1 ORDER BY started_at DESC LIMIT 1
	`, account)
	if err != nil {
		return history.AccountStats{}, fmt.Errorf("history/postgres: last run: %w", err)
	}
	run := last.toRun()
	stats.LastRun = &run
	return stats, nil
}

func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := s.db.SelectContext(ctx, &accounts, `SELECT DISTINCT account FROM account_runs ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("history/postgres: accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) HistoricalDaily(ctx context.Context, days int) ([]history.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(started_at, 'YYYY-MM-DD') AS day, COUNT(*), COALESCE(SUM(total_points), 0),
		       COUNT(*) FILTER (WHERE NOT success)
		FROM account_runs
		WHERE started_at > now() - ($1 || ' days')::interval
		GROUP BY day ORDER BY day
	`, days)
	if err != nil {
		return nil, fmt.Errorf("history/postgres: historical daily: %w", err)
	}
	defer rows.Close()

	var out []history.DailyStat
	for rows.Next() {
		var d history.DailyStat
		if err := rows.Scan(&d.Date, &d.Runs, &d.TotalPoints, &d.Failures); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ActivityBreakdown(ctx context.Context, days int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, SUM(value::int) FROM account_runs, jsonb_each_text(activities)
		WHERE started_at > now() - ($1 || ' days')::interval
		GROUP BY key
	`, days)
	if err != nil {
		return nil, fmt.Errorf("history/postgres: activity breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var total int
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		out[key] = total
	}
	return out, rows.Err()
}

func (s *Store) GlobalStats(ctx context.Context) (history.GlobalStats, error) {
	var g history.GlobalStats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT account) FROM account_runs`).Scan(&g.Accounts)
	if err != nil {
		return history.GlobalStats{}, fmt.Errorf("history/postgres: global accounts: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_points), 0), COUNT(*) FILTER (WHERE success), COUNT(*) FILTER (WHERE NOT success)
		FROM account_runs
	`).Scan(&g.TotalRuns, &g.TotalPoints, &g.SuccessfulRuns, &g.FailedRuns)
	if err != nil {
		return history.GlobalStats{}, fmt.Errorf("history/postgres: global stats: %w", err)
	}
	return g, nil
}
