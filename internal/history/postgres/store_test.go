package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/history"
)

func TestRecordRunInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db)

	mock.ExpectExec("INSERT INTO account_runs").
		WithArgs(sqlmock.AnyArg(), "a@x.test", sqlmock.AnyArg(), sqlmock.AnyArg(), true, 250, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	now := time.Now()
	err = s.RecordRun(context.Background(), run(now))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGlobalStatsQueriesAggregates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db)

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT account\\)").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM").
		WillReturnRows(sqlmock.NewRows([]string{"total", "points", "success", "failed"}).AddRow(10, 900, 8, 2))

	g, err := s.GlobalStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, g.Accounts)
	require.Equal(t, 10, g.TotalRuns)
	require.Equal(t, 900, g.TotalPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func run(now time.Time) history.Run {
	return history.Run{
		RunID: "r1", Account: "a@x.test", StartedAt: now, CompletedAt: now.Add(time.Minute),
		Success: true, TotalPoints: 250,
	}
}
