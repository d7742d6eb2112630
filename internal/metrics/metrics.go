// Package metrics registers the Prometheus collectors exposed by the
// Dashboard Gateway's GET /api/metrics (spec.md §4.14), generalised from the
// teacher's infrastructure/metrics package (HTTP/business/DB counters) to
// the orchestrator's own business metrics (accounts, points, bans, logins).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this process registers.
type Metrics struct {
	AccountsRunTotal    *prometheus.CounterVec
	PointsEarnedTotal   *prometheus.CounterVec
	WorkUnitsTotal      *prometheus.CounterVec
	LoginOutcomesTotal  *prometheus.CounterVec
	BanVerdictsTotal    *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	ActiveWorkers       prometheus.Gauge
	GlobalStandby       prometheus.Gauge
	AccountsDisabled    prometheus.Gauge
}

// New creates and registers Metrics against the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers Metrics against a custom registerer,
// used by tests to avoid collisions with the default global registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AccountsRunTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardsbot_accounts_run_total",
				Help: "Total pipeline runs by persona and outcome.",
			},
			[]string{"persona", "outcome"},
		),
		PointsEarnedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardsbot_points_earned_total",
				Help: "Total points earned by persona.",
			},
			[]string{"persona"},
		),
		WorkUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardsbot_work_units_total",
				Help: "Work units attempted by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		LoginOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardsbot_login_outcomes_total",
				Help: "Login state machine terminal outcomes.",
			},
			[]string{"outcome"},
		),
		BanVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewardsbot_ban_verdicts_total",
				Help: "Ban/risk verdicts by severity.",
			},
			[]string{"severity"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewardsbot_run_duration_seconds",
				Help:    "Per-account pipeline run duration.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"persona"},
		),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewardsbot_active_workers",
			Help: "Number of worker slots currently executing a pipeline.",
		}),
		GlobalStandby: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewardsbot_global_standby",
			Help: "1 if global standby is engaged, else 0.",
		}),
		AccountsDisabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewardsbot_accounts_disabled",
			Help: "Count of accounts currently disabled (hard-banned).",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.AccountsRunTotal, m.PointsEarnedTotal, m.WorkUnitsTotal,
		m.LoginOutcomesTotal, m.BanVerdictsTotal, m.RunDuration,
		m.ActiveWorkers, m.GlobalStandby, m.AccountsDisabled,
	} {
		_ = reg.Register(c)
	}
	return m
}
