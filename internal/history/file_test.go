package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "r1", Account: "a@x.test", StartedAt: now, CompletedAt: now.Add(5 * time.Minute),
		Success: true, TotalPoints: 250, Activities: map[string]int{"search:desktop": 150, "search:mobile": 100},
	}))
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "r2", Account: "a@x.test", StartedAt: now.Add(24 * time.Hour), CompletedAt: now.Add(24*time.Hour + time.Minute),
		Success: false, TotalPoints: 0, Errors: []string{"login blocked"},
	}))

	runs, err := s.History(ctx, "a@x.test", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "r2", runs[0].RunID, "most recent run first")
}

func TestStatsAggregates(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.RecordRun(ctx, Run{RunID: "r1", Account: "a@x.test", StartedAt: now, Success: true, TotalPoints: 100}))
	require.NoError(t, s.RecordRun(ctx, Run{RunID: "r2", Account: "a@x.test", StartedAt: now, Success: false, TotalPoints: 0}))

	stats, err := s.Stats(ctx, "a@x.test")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalRuns)
	require.Equal(t, 1, stats.SuccessfulRuns)
	require.Equal(t, 1, stats.FailedRuns)
	require.Equal(t, 100, stats.TotalPoints)
	require.Equal(t, 50.0, stats.AveragePoints)
	require.NotNil(t, stats.LastRun)
}

func TestUnknownAccountStatsIsZeroValue(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	stats, err := s.Stats(ctx, "nobody@x.test")
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalRuns)
	require.Nil(t, stats.LastRun)
}

func TestGlobalStatsAndActivityBreakdown(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "r1", Account: "a@x.test", StartedAt: now, Success: true, TotalPoints: 100,
		Activities: map[string]int{"poll": 10, "quiz": 90},
	}))
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "r2", Account: "b@x.test", StartedAt: now, Success: true, TotalPoints: 50,
		Activities: map[string]int{"poll": 50},
	}))

	g, err := s.GlobalStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, g.Accounts)
	require.Equal(t, 2, g.TotalRuns)
	require.Equal(t, 150, g.TotalPoints)

	breakdown, err := s.ActivityBreakdown(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 60, breakdown["poll"])
	require.Equal(t, 90, breakdown["quiz"])
}

func TestHistoricalDailyBucketsByDate(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.RecordRun(ctx, Run{RunID: "r1", Account: "a@x.test", StartedAt: now, Success: true, TotalPoints: 100}))

	days, err := s.HistoricalDaily(ctx, 7)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Equal(t, now.Format("2006-01-02"), days[0].Date)
	require.Equal(t, 100, days[0].TotalPoints)
}
