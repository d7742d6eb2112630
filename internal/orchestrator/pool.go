package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/account"
)

// RunFunc executes one account's pipeline for one pass. The pool
// itself stays decoupled from the history package's Run type; RunFunc
// is responsible for recording and notifying.
type RunFunc func(ctx context.Context, acct account.Account, pass int)

// unitTimeout is the per-work-unit deadline (spec.md §5): each task's
// context is cancelled once it has run this long. The pool waits for
// RunFunc to return and does not log the timeout itself; a RunFunc that
// ignores ctx keeps its worker slot until it returns.
const unitTimeout = 10 * time.Minute

// Pool is the Orchestrator / Worker Pool (C13): a bounded worker pool
// of size clusters that runs RunFunc across accounts for multiple
// passes, honoring global standby and a cooperative stop request.
type Pool struct {
	clusters       int
	interPassDelay time.Duration
	run            RunFunc
	log            *logrus.Entry

	globalStandby atomic.Bool
	stopRequested atomic.Bool
}

// NewPool returns a Pool of the given worker count (clamped to at
// least 1) running run for each (account, pass).
func NewPool(clusters int, interPassDelay time.Duration, run RunFunc, log *logrus.Entry) *Pool {
	if clusters < 1 {
		clusters = 1
	}
	return &Pool{clusters: clusters, interPassDelay: interPassDelay, run: run, log: log}
}

// EngageStandby sets the global standby flag: no new task starts until
// an operator clears it with ClearStandby (spec.md §4.13, §5).
func (p *Pool) EngageStandby(reason string) {
	if p.globalStandby.CompareAndSwap(false, true) {
		p.log.WithField("reason", reason).Warn("orchestrator: global standby engaged")
	}
}

// ClearStandby is the operator-only action that resumes scheduling.
func (p *Pool) ClearStandby() {
	if p.globalStandby.CompareAndSwap(true, false) {
		p.log.Info("orchestrator: global standby cleared")
	}
}

// StandbyEngaged reports the current global standby state.
func (p *Pool) StandbyEngaged() bool { return p.globalStandby.Load() }

// RequestStop sets the cooperative stop flag; in-flight units finish,
// no new (account, pass) task starts.
func (p *Pool) RequestStop() { p.stopRequested.Store(true) }

// ClearStop clears a previously requested stop, allowing RunAll to be
// invoked again (e.g. after a dashboard "restart" command).
func (p *Pool) ClearStop() { p.stopRequested.Store(false) }

// StopRequested reports the current cooperative stop state.
func (p *Pool) StopRequested() bool { return p.stopRequested.Load() }

// RunAll drains accounts across p.clusters workers for passes rounds,
// sleeping interPassDelay between passes. Ordering: no cross-account
// ordering is guaranteed; within one account, passes execute strictly
// in order 1..passes (spec.md §4.13, §5).
func (p *Pool) RunAll(ctx context.Context, accounts []account.Account, passes int) {
	if passes < 1 {
		passes = 1
	}
	for pass := 1; pass <= passes; pass++ {
		if p.StopRequested() {
			p.log.Info("orchestrator: stop requested, aborting remaining passes")
			return
		}
		p.runPass(ctx, accounts, pass)
		if pass < passes && p.interPassDelay > 0 {
			select {
			case <-time.After(p.interPassDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) runPass(ctx context.Context, accounts []account.Account, pass int) {
	sem := make(chan struct{}, p.clusters)
	var wg sync.WaitGroup

	for _, acct := range accounts {
		if !acct.Enabled {
			continue
		}
		if p.StopRequested() {
			break
		}
		if p.StandbyEngaged() {
			p.log.Debug("orchestrator: global standby active, not starting new task")
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(acct account.Account) {
			defer wg.Done()
			defer func() { <-sem }()
			uctx, cancel := context.WithTimeout(ctx, unitTimeout)
			defer cancel()
			p.run(uctx, acct, pass)
		}(acct)
	}
	wg.Wait()
}

// RunSingle runs one account immediately outside the normal pass loop,
// for the dashboard's "run-single-account" command.
func (p *Pool) RunSingle(ctx context.Context, acct account.Account) {
	uctx, cancel := context.WithTimeout(ctx, unitTimeout)
	defer cancel()
	p.run(uctx, acct, 1)
}
