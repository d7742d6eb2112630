// Package config loads and validates the orchestrator's comment-tolerant
// JSON configuration file (spec.md §4.2). Grounded on the teacher's
// infrastructure/config helpers (env/secret lookups, duration parsing),
// generalised here to a single typed, validated document instead of
// scattered os.Getenv calls, since this module's config is file-based.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration round-trips through JSON as a Go duration string ("3s", "1h30m"),
// matching the config file's textual duration fields while preserving exact
// values across load→save (spec.md §8 property 5).
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// ScheduleConfig is C1 Clock & Scheduler's configuration: zero or more local
// wall-clock fire times, a jitter window, and a vacation die.
type ScheduleConfig struct {
	Times               []string `json:"times"`
	JitterMinutes       int      `json:"jitter_minutes" validate:"min=0"`
	VacationProbability float64  `json:"vacation_probability" validate:"min=0,max=1"`
}

// ParallelConfig controls whether desktop/mobile personas run concurrently
// per account (default: sequential desktop→mobile, spec.md §4.2).
type ParallelConfig struct {
	Desktop bool `json:"desktop"`
	Mobile  bool `json:"mobile"`
}

// WorkersConfig gates each optional work-unit kind.
type WorkersConfig struct {
	DoDailySet       bool `json:"do_daily_set"`
	DoMorePromotions bool `json:"do_more_promotions"`
	DoPunchCards     bool `json:"do_punch_cards"`
	DoDesktopSearch  bool `json:"do_desktop_search"`
	DoMobileSearch   bool `json:"do_mobile_search"`
	DoReadToEarn     bool `json:"do_read_to_earn"`
	DoDailyCheckIn   bool `json:"do_daily_check_in"`
	DoFreeRewards    bool `json:"do_free_rewards"`
}

// SearchDelayConfig bounds the dwell applied between search queries.
type SearchDelayConfig struct {
	Min Duration `json:"min"`
	Max Duration `json:"max"`
}

// SearchSettingsConfig configures the Search Engine (C10).
type SearchSettingsConfig struct {
	RetryMobileSearchAmount int               `json:"retry_mobile_search_amount" validate:"min=0"`
	SearchDelay             SearchDelayConfig `json:"search_delay"`
	PerSessionMax           int               `json:"per_session_max" validate:"min=0"`
}

// HumanizationConfig tunes the Secure Random + Human Timing generators (C5).
type HumanizationConfig struct {
	Enabled            bool    `json:"enabled"`
	MouseOvershootProb float64 `json:"mouse_overshoot_prob" validate:"min=0,max=1"`
	TremorIntensity    float64 `json:"tremor_intensity" validate:"min=0,max=1"`
	TypingVariance     float64 `json:"typing_variance" validate:"min=0,max=1"`
}

// ExecutionConfig controls orchestrator passes (C13).
type ExecutionConfig struct {
	Passes          int      `json:"passes" validate:"min=1"`
	InterPassDelay  Duration `json:"inter_pass_delay"`
}

// BanDetectionConfig controls the Ban/Risk Detector (C9).
type BanDetectionConfig struct {
	Enabled             bool `json:"enabled"`
	EscalationThreshold int  `json:"escalation_threshold" validate:"min=1"`
}

// Config is the full recognised option set from spec.md §4.2, plus the
// Clock & Scheduler's own block (spec.md §4.1).
type Config struct {
	Clusters        int                  `json:"clusters" validate:"min=1"`
	Parallel        ParallelConfig       `json:"parallel"`
	RunOnZeroPoints bool                 `json:"run_on_zero_points"`
	Workers         WorkersConfig        `json:"workers"`
	SearchSettings  SearchSettingsConfig `json:"search_settings"`
	Humanization    HumanizationConfig   `json:"humanization"`
	Execution       ExecutionConfig      `json:"execution"`
	BanDetection    BanDetectionConfig   `json:"ban_detection"`
	Schedule        ScheduleConfig       `json:"schedule"`
}

// Default returns a Config with every numeric/bool field at the value a
// freshly-installed operator would expect: one daily pass, sequential
// personas, ban detection on, no humanization variance knobs disabled.
func Default() Config {
	return Config{
		Clusters:        1,
		RunOnZeroPoints: false,
		Workers: WorkersConfig{
			DoDailySet: true, DoMorePromotions: true, DoPunchCards: true,
			DoDesktopSearch: true, DoMobileSearch: true, DoReadToEarn: true,
			DoDailyCheckIn: true, DoFreeRewards: false,
		},
		SearchSettings: SearchSettingsConfig{
			RetryMobileSearchAmount: 2,
			SearchDelay:             SearchDelayConfig{Min: Duration(3 * time.Second), Max: Duration(6 * time.Second)},
			PerSessionMax:           35,
		},
		Humanization: HumanizationConfig{
			Enabled: true, MouseOvershootProb: 0.3, TremorIntensity: 0.2, TypingVariance: 0.4,
		},
		Execution: ExecutionConfig{Passes: 1, InterPassDelay: Duration(0)},
		BanDetection: BanDetectionConfig{
			Enabled: true, EscalationThreshold: 3,
		},
		Schedule: ScheduleConfig{Times: []string{"09:00"}, JitterMinutes: 15, VacationProbability: 0},
	}
}
