package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/account"
)

func testAccounts(n int) []account.Account {
	out := make([]account.Account, n)
	for i := range out {
		out[i] = account.Account{Email: string(rune('a' + i)), Enabled: true}
	}
	return out
}

func TestRunAllInvokesEveryEnabledAccountEveryPass(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	var seen []string

	pool := NewPool(2, 0, func(_ context.Context, acct account.Account, pass int) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		seen = append(seen, acct.Email)
		mu.Unlock()
	}, logrus.NewEntry(logrus.New()))

	accounts := testAccounts(3)
	accounts = append(accounts, account.Account{Email: "disabled", Enabled: false})

	pool.RunAll(context.Background(), accounts, 2)
	require.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestRunAllRespectsConcurrencyLimit(t *testing.T) {
	var active, maxActive int32
	pool := NewPool(2, 0, func(ctx context.Context, acct account.Account, pass int) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	}, logrus.NewEntry(logrus.New()))

	pool.RunAll(context.Background(), testAccounts(6), 1)
	require.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(2))
}

func TestRunAllStopsWhenStopRequested(t *testing.T) {
	var calls int32
	pool := NewPool(1, 0, func(context.Context, account.Account, int) {
		atomic.AddInt32(&calls, 1)
	}, logrus.NewEntry(logrus.New()))

	pool.RequestStop()
	pool.RunAll(context.Background(), testAccounts(3), 3)
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRunAllSkipsNewTasksWhenStandbyEngaged(t *testing.T) {
	var calls int32
	pool := NewPool(1, 0, func(context.Context, account.Account, int) {
		atomic.AddInt32(&calls, 1)
	}, logrus.NewEntry(logrus.New()))

	pool.EngageStandby("test")
	pool.RunAll(context.Background(), testAccounts(3), 1)
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
	require.True(t, pool.StandbyEngaged())

	pool.ClearStandby()
	require.False(t, pool.StandbyEngaged())
}

func TestRunSingleRunsImmediately(t *testing.T) {
	var ran bool
	pool := NewPool(1, 0, func(context.Context, account.Account, int) { ran = true }, logrus.NewEntry(logrus.New()))
	pool.RunSingle(context.Background(), account.Account{Email: "x", Enabled: true})
	require.True(t, ran)
}
