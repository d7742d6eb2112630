package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
)

// Dispatcher routes promotions to their classified handler and records
// the outcome in the Job-State Store, so a restarted run never repeats
// a promotion already confirmed complete (spec.md §4.3, §4.11).
type Dispatcher struct {
	handlers map[Kind]Handler
	jobs     *jobstate.Store
	log      *logrus.Entry
}

// NewDispatcher returns a Dispatcher. handlers need not cover every
// Kind; an unregistered kind (including KindUnsupported) is skipped
// without marking an attempt.
func NewDispatcher(handlers map[Kind]Handler, jobs *jobstate.Store, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{handlers: handlers, jobs: jobs, log: log}
}

// Dispatch classifies promo, skips it if already completed today per
// the job-state snapshot, otherwise runs its handler and marks the
// result before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, account, date string, sess browser.Session, promo Promotion) (Outcome, error) {
	kind := Classify(promo)
	if kind == KindUnsupported {
		d.log.WithField("promotion", promo.ID).Debug("activity: unsupported promotion kind, skipping")
		return Outcome{}, nil
	}

	done, err := d.jobs.Get(account, date)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: read job state: %w", err)
	}
	if done[promo.ID] {
		return Outcome{Completed: true}, nil
	}

	handler, ok := d.handlers[kind]
	if !ok {
		d.log.WithField("kind", kind).Debug("activity: no handler registered for kind, skipping")
		return Outcome{}, nil
	}

	outcome, runErr := handler.Run(ctx, sess, promo)
	markErr := d.jobs.Mark(account, date, promo.ID, outcome.Completed, outcome.PointsEarned, time.Now())
	if markErr != nil {
		d.log.WithError(markErr).WithField("promotion", promo.ID).Warn("activity: failed to persist job state")
	}
	if runErr != nil {
		return outcome, fmt.Errorf("activity: run %s (%s): %w", promo.ID, kind, runErr)
	}
	return outcome, nil
}
