package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// Outcome is what a handler did with one promotion.
type Outcome struct {
	Completed    bool
	PointsEarned int

	// AlreadyDone marks the terminal no-op case spec.md §4.11 calls out
	// for DailyCheckIn/ReadToEarn: the API itself reports the unit was
	// already claimed, as distinct from this call being the one that
	// claimed it.
	AlreadyDone bool
}

// Handler runs one activity kind to completion. Every browser-driven
// handler opens its own tab and closes it on all exit paths (spec.md
// §4.11); the API-only DailyCheckIn and ReadToEarn handlers open none.
type Handler interface {
	Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error)
}

// withTab opens a new page on sess, runs fn, and guarantees the page is
// closed afterward regardless of how fn returns.
func withTab(ctx context.Context, sess browser.Session, fn func(page browser.Page) (Outcome, error)) (Outcome, error) {
	page, err := sess.NewPage(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: open tab: %w", err)
	}
	defer func() {
		if !page.Closed() {
			_ = page.Close()
		}
	}()
	return fn(page)
}

// PollHandler implements spec.md §4.11's Poll contract.
type PollHandler struct {
	rng *rng.Source
}

func NewPollHandler(r *rng.Source) *PollHandler { return &PollHandler{rng: r} }

func (h *PollHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: poll navigate: %w", err)
		}
		optionID := rng.Pick(h.rng, []string{"rewardsQuizOption0", "rewardsQuizOption1"})
		if err := page.Click(ctx, "#"+optionID); err != nil {
			return Outcome{}, fmt.Errorf("activity: poll click option: %w", err)
		}
		if _, err := browser.SmartWait(ctx, page, ".poll-settled, .correctAnswer", h.rng); err != nil {
			return Outcome{}, fmt.Errorf("activity: poll wait settle: %w", err)
		}
		return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
	})
}

// ABCHandler implements spec.md §4.11's ABC contract.
type ABCHandler struct {
	rng         *rng.Source
	maxQuestions int
}

func NewABCHandler(r *rng.Source) *ABCHandler { return &ABCHandler{rng: r, maxQuestions: 10} }

func (h *ABCHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: abc navigate: %w", err)
		}
		for i := 0; i < h.maxQuestions; i++ {
			done, err := page.WaitForSelector(ctx, ".quiz-completed-icon", 400*time.Millisecond)
			if err != nil {
				return Outcome{}, fmt.Errorf("activity: abc check complete: %w", err)
			}
			if done {
				return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
			}
			choice := h.rng.IntIn(0, 4)
			if err := page.Click(ctx, fmt.Sprintf(".optionContainer [data-option='%d']", choice)); err != nil {
				return Outcome{}, fmt.Errorf("activity: abc click option %d: %w", i, err)
			}
			if _, err := browser.SmartWait(ctx, page, ".nextQuestion, .quiz-completed-icon", h.rng); err != nil {
				return Outcome{}, fmt.Errorf("activity: abc wait next: %w", err)
			}
			_ = page.Click(ctx, ".nextQuestion")
		}
		return Outcome{Completed: false}, nil
	})
}

// ThisOrThatHandler implements spec.md §4.11's ThisOrThat contract.
type ThisOrThatHandler struct {
	rng *rng.Source
}

func NewThisOrThatHandler(r *rng.Source) *ThisOrThatHandler { return &ThisOrThatHandler{rng: r} }

func (h *ThisOrThatHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: thisorthat navigate: %w", err)
		}
		if present, _ := page.WaitForSelector(ctx, "#rewardsQuizStartButton", 500*time.Millisecond); present {
			_ = page.Click(ctx, "#rewardsQuizStartButton")
		}

		maxQuestions := 10
		currentQuestion := 1
		for ; currentQuestion <= maxQuestions; currentQuestion++ {
			side := rng.Pick(h.rng, []string{"#rewardsQuizOption0", "#rewardsQuizOption1"})
			if err := page.Click(ctx, side); err != nil {
				return Outcome{}, fmt.Errorf("activity: thisorthat click: %w", err)
			}
			if _, err := browser.SmartWait(ctx, page, "[data-question-number]", h.rng); err != nil {
				return Outcome{}, fmt.Errorf("activity: thisorthat wait refresh: %w", err)
			}
		}
		return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
	})
}

// QuizHandler implements spec.md §4.11's Quiz contract for both the
// 8-option pre-scan variant and the 2-4-option correct-answer variant.
type QuizHandler struct {
	rng *rng.Source
}

func NewQuizHandler(r *rng.Source) *QuizHandler { return &QuizHandler{rng: r} }

// QuizState is the subset of the page-exposed quiz data the handler
// needs, read via Page.Evaluate against a page-injected JSON blob.
type QuizState struct {
	OptionCount    int
	CorrectOptions []string // data-option values flagged iscorrectoption=true (8-option variant)
	CorrectAnswer  string   // data-option value matching the correct answer (2-4 option variant)
}

func (h *QuizHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: quiz navigate: %w", err)
		}
		raw, err := page.Evaluate(ctx, "window.__quizState")
		if err != nil {
			return Outcome{}, fmt.Errorf("activity: quiz read state: %w", err)
		}
		state, ok := raw.(QuizState)
		if !ok {
			return Outcome{}, fmt.Errorf("activity: quiz state not available on page")
		}

		if state.OptionCount == 8 {
			for _, opt := range state.CorrectOptions {
				if err := page.Click(ctx, fmt.Sprintf("[data-option='%s']", opt)); err != nil {
					return Outcome{}, fmt.Errorf("activity: quiz click option %s: %w", opt, err)
				}
				if _, err := browser.SmartWait(ctx, page, "[data-question-number]", h.rng); err != nil {
					return Outcome{}, fmt.Errorf("activity: quiz wait refresh: %w", err)
				}
			}
			return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
		}

		if err := page.Click(ctx, fmt.Sprintf("[data-option='%s']", state.CorrectAnswer)); err != nil {
			return Outcome{}, fmt.Errorf("activity: quiz click answer: %w", err)
		}
		if _, err := browser.SmartWait(ctx, page, "[data-question-number]", h.rng); err != nil {
			return Outcome{}, fmt.Errorf("activity: quiz wait refresh: %w", err)
		}
		return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
	})
}

// URLRewardHandler implements spec.md §4.11's UrlReward contract: the
// page load itself grants the points, so the handler only needs to
// dwell and close.
type URLRewardHandler struct {
	rng                      *rng.Source
	dwellMinMS, dwellMaxMS float64
}

// NewURLRewardHandler returns a handler dwelling 1.5-4s per page, the
// humanized range spec.md §4.11 calls for outside of tests.
func NewURLRewardHandler(r *rng.Source) *URLRewardHandler {
	return &URLRewardHandler{rng: r, dwellMinMS: 1500, dwellMaxMS: 4000}
}

func (h *URLRewardHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: urlreward navigate: %w", err)
		}
		dwell := time.Duration(h.rng.FloatIn(h.dwellMinMS, h.dwellMaxMS)) * time.Millisecond
		select {
		case <-time.After(dwell):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
		return Outcome{Completed: true, PointsEarned: promo.PointProgressMax}, nil
	})
}
