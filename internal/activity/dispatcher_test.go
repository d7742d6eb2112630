package activity

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

func TestDispatchSkipsUnsupportedKind(t *testing.T) {
	jobs, err := jobstate.New(t.TempDir())
	require.NoError(t, err)
	d := NewDispatcher(nil, jobs, logrus.NewEntry(logrus.New()))

	out, err := d.Dispatch(context.Background(), "acct@example.com", "2026-07-31", &fakeActivitySession{}, Promotion{ID: "x", PromotionType: "welcometour"})
	require.NoError(t, err)
	require.False(t, out.Completed)
}

func TestDispatchSkipsAlreadyCompletedUnit(t *testing.T) {
	jobs, err := jobstate.New(t.TempDir())
	require.NoError(t, err)
	acct, date := "acct@example.com", "2026-07-31"
	require.NoError(t, jobs.Mark(acct, date, "p1", true, 10, time.Now()))

	d := NewDispatcher(map[Kind]Handler{KindURLReward: NewURLRewardHandler(rng.New())}, jobs, logrus.NewEntry(logrus.New()))
	out, err := d.Dispatch(context.Background(), acct, date, &fakeActivitySession{}, Promotion{ID: "p1", PromotionType: "urlreward"})
	require.NoError(t, err)
	require.True(t, out.Completed)
}

func TestDispatchRunsHandlerAndMarksJobState(t *testing.T) {
	jobs, err := jobstate.New(t.TempDir())
	require.NoError(t, err)
	acct, date := "acct@example.com", "2026-07-31"

	handler := NewURLRewardHandler(rng.New())
	handler.dwellMinMS, handler.dwellMaxMS = 0.1, 0.2

	d := NewDispatcher(map[Kind]Handler{KindURLReward: handler}, jobs, logrus.NewEntry(logrus.New()))
	sess := &fakeActivitySession{}
	out, err := d.Dispatch(context.Background(), acct, date, sess, Promotion{ID: "p2", PromotionType: "urlreward", PointProgressMax: 5})
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, 5, out.PointsEarned)

	done, err := jobs.Get(acct, date)
	require.NoError(t, err)
	require.True(t, done["p2"])
}
