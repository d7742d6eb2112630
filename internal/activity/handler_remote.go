package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/rng"
	"github.com/kestrelops/rewardsbot/internal/search"
)

// SearchRunner is the subset of *search.Runner a SearchOnBingHandler
// needs, narrowed so it can be faked in tests.
type SearchRunner interface {
	Run(ctx context.Context, page browser.Page, locale string, progress search.ProgressFetcher) (search.Result, error)
}

// SearchOnBingHandler delegates to the Search Engine (spec.md §4.11:
// the "ExploreOnBing"-named urlreward promotions are really a search
// quota, not a one-shot page load).
type SearchOnBingHandler struct {
	runner   SearchRunner
	locale   string
	progress search.ProgressFetcher
}

// NewSearchOnBingHandler binds a runner and locale. Each Run builds its
// progress fetcher from the promotion's own point-progress counters.
func NewSearchOnBingHandler(runner SearchRunner, locale string) *SearchOnBingHandler {
	return &SearchOnBingHandler{runner: runner, locale: locale}
}

func (h *SearchOnBingHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		progress := func(context.Context) (int, int, error) {
			return promo.PointProgress, promo.PointProgressMax, nil
		}
		res, err := h.runner.Run(ctx, page, h.locale, progress)
		if err != nil {
			return Outcome{}, fmt.Errorf("activity: searchOnBing: %w", err)
		}
		return Outcome{Completed: res.Completed, PointsEarned: promo.PointProgressMax}, nil
	})
}

// FreeRewardsCard is one free-rewards enumeration entry: a card whose
// price is zero points, gated behind a Cloudflare Turnstile challenge.
type FreeRewardsCard struct {
	Selector string
	Name     string
}

// FreeRewardsHandler implements spec.md §4.11's FreeRewards contract:
// gated on do_free_rewards and a configured phone number, it enumerates
// zero-price cards and waits out a Turnstile challenge with humanized
// scroll/mouse motion between clicks.
type FreeRewardsHandler struct {
	rng         *rng.Source
	log         *logrus.Entry
	enabled     bool
	phoneNumber string
}

// NewFreeRewardsHandler returns a handler gated by enabled (the
// do_free_rewards config flag) and phoneNumber (required by the portal
// to unlock the free-rewards tab).
func NewFreeRewardsHandler(r *rng.Source, log *logrus.Entry, enabled bool, phoneNumber string) *FreeRewardsHandler {
	return &FreeRewardsHandler{rng: r, log: log, enabled: enabled, phoneNumber: phoneNumber}
}

func (h *FreeRewardsHandler) Run(ctx context.Context, sess browser.Session, promo Promotion) (Outcome, error) {
	if !h.enabled || h.phoneNumber == "" {
		h.log.Debug("activity: freeRewards skipped, not enabled or no phone number configured")
		return Outcome{Completed: false}, nil
	}
	return withTab(ctx, sess, func(page browser.Page) (Outcome, error) {
		if err := page.Goto(ctx, promo.URL); err != nil {
			return Outcome{}, fmt.Errorf("activity: freeRewards navigate: %w", err)
		}
		present, err := browser.SmartWait(ctx, page, "[data-bi-name='freeRewardsCard'][data-price='0']", h.rng)
		if err != nil {
			return Outcome{}, fmt.Errorf("activity: freeRewards wait cards: %w", err)
		}
		if !present {
			return Outcome{Completed: false}, nil
		}

		cards, _ := page.Evaluate(ctx, `Array.from(document.querySelectorAll("[data-bi-name='freeRewardsCard'][data-price='0']")).map(e => e.id)`)
		ids, _ := cards.([]string)

		awarded := 0
		for _, id := range ids {
			if err := page.Click(ctx, "#"+id); err != nil {
				h.log.WithError(err).WithField("card", id).Debug("activity: freeRewards click failed, continuing")
				continue
			}
			if err := h.waitOutTurnstile(ctx, page); err != nil {
				h.log.WithError(err).Debug("activity: freeRewards turnstile wait errored, continuing")
				continue
			}
			awarded++
		}
		return Outcome{Completed: awarded > 0, PointsEarned: 0}, nil
	})
}

// waitOutTurnstile polls for Turnstile's completion marker, scrolling
// and nudging the page between polls so the challenge sees motion
// rather than a frozen viewport.
func (h *FreeRewardsHandler) waitOutTurnstile(ctx context.Context, page browser.Page) error {
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		done, err := page.WaitForSelector(ctx, "[data-turnstile-status='solved'], .turnstile-success", 1500*time.Millisecond)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		_, _ = page.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d)", h.rng.IntIn(20, 200)))
		select {
		case <-time.After(time.Duration(h.rng.FloatIn(300, 900)) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// DailyCheckInHandler implements spec.md §4.11's DailyCheckIn contract:
// a direct API call, no tab involved.
type DailyCheckInHandler struct {
	api *APIClient
}

func NewDailyCheckInHandler(api *APIClient) *DailyCheckInHandler { return &DailyCheckInHandler{api: api} }

func (h *DailyCheckInHandler) Run(ctx context.Context, _ browser.Session, _ Promotion) (Outcome, error) {
	res, err := h.api.DailyCheckIn(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: dailyCheckIn: %w", err)
	}
	if res.AlreadyDone {
		return Outcome{Completed: true, AlreadyDone: true}, nil
	}
	return Outcome{Completed: true, PointsEarned: res.PointsEarned}, nil
}

// readToEarnMaxArticles bounds one run to at most this many articles
// (spec.md §4.11).
const readToEarnMaxArticles = 10

// ReadToEarnHandler implements spec.md §4.11's ReadToEarn contract: a
// direct API call per article, bounded at readToEarnMaxArticles.
type ReadToEarnHandler struct {
	api *APIClient
	log *logrus.Entry
}

func NewReadToEarnHandler(api *APIClient, log *logrus.Entry) *ReadToEarnHandler {
	return &ReadToEarnHandler{api: api, log: log}
}

func (h *ReadToEarnHandler) Run(ctx context.Context, _ browser.Session, _ Promotion) (Outcome, error) {
	articles, err := h.api.readToEarnFeed(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: readToEarn feed: %w", err)
	}
	if len(articles) > readToEarnMaxArticles {
		articles = articles[:readToEarnMaxArticles]
	}

	total := 0
	for _, a := range articles {
		points, err := h.api.readArticle(ctx, a.ID)
		if err != nil {
			h.log.WithError(err).WithField("article", a.ID).Warn("activity: readToEarn article failed, continuing")
			continue
		}
		total += points
	}
	return Outcome{Completed: len(articles) > 0, PointsEarned: total}, nil
}

// RunMobile executes the read-to-earn flow for (account, date), marking
// each article under its own "r2e:<index>" work-unit id (spec.md §3) so
// a restarted run never re-reads an article already confirmed read
// today, and so an article that fails mid-run doesn't block the ones
// after it on the next attempt.
func (h *ReadToEarnHandler) RunMobile(ctx context.Context, jobs *jobstate.Store, account, date string) (Outcome, error) {
	articles, err := h.api.readToEarnFeed(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: readToEarn feed: %w", err)
	}
	if len(articles) > readToEarnMaxArticles {
		articles = articles[:readToEarnMaxArticles]
	}

	done, err := jobs.Get(account, date)
	if err != nil {
		return Outcome{}, fmt.Errorf("activity: read job state: %w", err)
	}

	total := 0
	completedAny := false
	for i, a := range articles {
		unitID := fmt.Sprintf("r2e:%d", i)
		if done[unitID] {
			completedAny = true
			continue
		}
		points, err := h.api.readArticle(ctx, a.ID)
		if err != nil {
			h.log.WithError(err).WithField("article", a.ID).Warn("activity: readToEarn article failed, continuing")
			if markErr := jobs.Mark(account, date, unitID, false, 0, time.Now()); markErr != nil {
				h.log.WithError(markErr).Warn("activity: failed to persist readToEarn attempt")
			}
			continue
		}
		completedAny = true
		total += points
		if markErr := jobs.Mark(account, date, unitID, true, points, time.Now()); markErr != nil {
			h.log.WithError(markErr).Warn("activity: failed to persist readToEarn completion")
		}
	}
	return Outcome{Completed: completedAny, PointsEarned: total}, nil
}
