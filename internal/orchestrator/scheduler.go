// Package orchestrator implements the Clock & Scheduler (C1) and the
// Orchestrator / Worker Pool (C13): a cron-driven trigger that, at each
// configured local fire time (plus jitter, minus vacation days), asks
// a bounded worker pool to run every enabled account's pipeline.
package orchestrator

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/config"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// Scheduler fires Trigger at each configured local time, applying
// jitter and a per-firing vacation-day die (spec.md §4.1).
type Scheduler struct {
	cr      *cron.Cron
	cfg     config.ScheduleConfig
	rng     *rng.Source
	log     *logrus.Entry
	trigger func()
}

// NewScheduler builds a Scheduler from cfg's Times ("HH:MM" 24h local
// entries). Each entry becomes a standard 5-field cron spec firing on
// that minute every day; trigger is called once per firing that
// survives the vacation die.
func NewScheduler(cfg config.ScheduleConfig, r *rng.Source, log *logrus.Entry, trigger func()) (*Scheduler, error) {
	s := &Scheduler{
		cr:      cron.New(),
		cfg:     cfg,
		rng:     r,
		log:     log,
		trigger: trigger,
	}
	for _, t := range cfg.Times {
		spec, err := toCronSpec(t)
		if err != nil {
			return nil, err
		}
		if _, err := s.cr.AddFunc(spec, s.fire); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// toCronSpec converts an "HH:MM" wall-clock entry into a standard
// 5-field cron spec firing on that minute every day.
func toCronSpec(hhmm string) (string, error) {
	var h, m int
	if _, err := parseHHMM(hhmm, &h, &m); err != nil {
		return "", err
	}
	return cronField(m) + " " + cronField(h) + " * * *", nil
}

func parseHHMM(s string, h, m *int) (bool, error) {
	var hh, mm int
	if n, err := parseTwoInts(s, &hh, &mm); err != nil || n != 2 {
		return false, errInvalidTime(s)
	}
	*h, *m = hh, mm
	return true, nil
}

// Start begins firing the scheduler's cron jobs on their own goroutine.
func (s *Scheduler) Start() { s.cr.Start() }

// Stop halts future firings and waits for any in-flight job function to
// return. The job function sleeps its jitter delay (up to jitter_minutes)
// before calling trigger, so Stop can block that long when called
// mid-firing.
func (s *Scheduler) Stop() { <-s.cr.Stop().Done() }

// fire applies the jitter delay and vacation die, then calls trigger.
// Jitter/vacation live in the job function rather than the cron spec
// itself, since cron fires on the minute and the spec's jitter window
// is sub-minute-to-several-minute, applied after the fire (spec.md
// B "New home in this spec" for robfig/cron/v3).
func (s *Scheduler) fire() {
	if s.cfg.VacationProbability > 0 && s.rng.Bool(s.cfg.VacationProbability) {
		s.log.Info("scheduler: vacation day, skipping this firing")
		return
	}
	if s.cfg.JitterMinutes > 0 {
		delayMinutes := s.rng.FloatIn(0, float64(s.cfg.JitterMinutes))
		s.log.WithField("jitter_minutes", delayMinutes).Debug("scheduler: applying jitter before trigger")
		sleepMinutes(delayMinutes)
	}
	s.trigger()
}
