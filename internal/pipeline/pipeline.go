// Package pipeline implements the Per-Account Pipeline (C12): for one
// account, build a browser session (C6/C7), run the Login State
// Machine (C8), consult the Ban/Risk Detector (C9) at each stage, then
// dispatch search (C10) and activities (C11), consulting and updating
// job-state (C3) throughout. History (C4) and notifications (C15) are
// emitted at the end of the run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/account"
	"github.com/kestrelops/rewardsbot/internal/activity"
	"github.com/kestrelops/rewardsbot/internal/ban"
	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/config"
	"github.com/kestrelops/rewardsbot/internal/errtax"
	"github.com/kestrelops/rewardsbot/internal/history"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/login"
	"github.com/kestrelops/rewardsbot/internal/notify"
	"github.com/kestrelops/rewardsbot/internal/rng"
	"github.com/kestrelops/rewardsbot/internal/search"
)

// PromotionSource fetches the current set of dashboard promotions for
// an already-logged-in page. A real implementation scrapes or calls the
// rewards dashboard API; it is injected so the pipeline never imports a
// concrete scraping strategy.
type PromotionSource func(ctx context.Context, page browser.Page) ([]activity.Promotion, error)

// OAuthTokenFetcher exchanges the desktop session's cookies for a
// bearer token usable against the mobile rewards API (spec.md §4.12's
// "OAuth token acquisition for mobile API").
type OAuthTokenFetcher func(ctx context.Context, cookies []browser.Cookie) (string, error)

// Deps bundles every collaborator the pipeline needs. History, Notify,
// Promotions, OAuthToken, NewSearchRunner, NewAPIClient and
// AccountsFilePath may be left nil/empty: that stage is then skipped
// rather than panicking, so a partially wired Runner (e.g. in tests)
// degrades gracefully. BrowserFactory, LoginMachine, BanDetector,
// JobState, RNG and Log are used without nil checks.
type Deps struct {
	BrowserFactory   *browser.Factory
	LoginMachine     *login.Machine
	LoginAccounts    Selectors
	BanDetector      *ban.Detector
	JobState         *jobstate.Store
	History          history.Store
	Notify           *notify.Sink
	RNG              *rng.Source
	Log              *logrus.Entry
	Promotions       PromotionSource
	OAuthToken       OAuthTokenFetcher
	AccountsFilePath string

	NewSearchRunner func(cfg config.Config, locale string) activity.SearchRunner
	NewAPIClient    func(token string) *activity.APIClient
	ProfileRoot     string
	SearchEndpoint  string
	HomeURL         string
	Locale          string
}

// Selectors re-exports login.Selectors so callers configuring a Runner
// don't need to import internal/login directly for this one type.
type Selectors = login.Selectors

// Runner drives one account's pipeline to completion.
type Runner struct {
	deps Deps
}

// New returns a Runner bound to deps.
func New(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// globalStandbyChecker reports whether the orchestrator has engaged
// global standby; a security incident mid-run must still let the
// current work unit finish but must stop before the next one starts.
type globalStandbyChecker func() bool

// Run executes the full pipeline for acct on date, returning the
// recorded history.Run. A handler-level failure is captured in the
// Run's Errors slice and does not abort the remaining work units; a
// login failure or confirmed ban does abort the run.
func (r *Runner) Run(ctx context.Context, acct account.Account, cfg config.Config, date string, standby globalStandbyChecker) history.Run {
	run := history.Run{
		RunID:      uuid.NewString(),
		Account:    acct.Email,
		StartedAt:  time.Now(),
		Activities: make(map[string]int),
	}

	defer func() {
		run.CompletedAt = time.Now()
		if r.deps.History != nil {
			if err := r.deps.History.RecordRun(ctx, run); err != nil {
				r.deps.Log.WithError(err).Warn("pipeline: failed to record run history")
			}
		}
		r.notifyRunComplete(ctx, run)
	}()

	if standby != nil && standby() {
		run.Errors = append(run.Errors, "skipped: global standby engaged")
		return run
	}

	built, err := r.deps.BrowserFactory.Build(ctx, acct.Email, filepath.Join(r.deps.ProfileRoot, safeName(acct.Email)), browser.Desktop, proxyURL(acct))
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("browser build: %v", err))
		return run
	}
	defer browser.Release(built)

	if err := r.runLogin(ctx, built.Page, acct); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("login: %v", err))
		if be, ok := err.(*login.BlockedError); ok {
			r.handleBan(ctx, acct.Email, ban.Verdict{Severity: ban.SeverityHardBan, Reason: be.Kind + ":" + be.Phrase})
		}
		return run
	}

	if v := r.checkBan(ctx, acct.Email, built.Page); v.Severity == ban.SeverityHardBan {
		run.Errors = append(run.Errors, "ban: "+v.Reason)
		return run
	}

	run.Success = true

	if r.deps.Promotions != nil {
		promos, err := r.deps.Promotions(ctx, built.Page)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("promotions: %v", err))
		} else {
			r.runActivities(ctx, acct, date, built, promos, &run)
		}
	}

	if cfg.Workers.DoDesktopSearch && r.deps.NewSearchRunner != nil {
		r.runSearch(ctx, acct, built.Page, cfg, browser.Desktop, &run)
	}

	if cfg.Workers.DoMobileSearch && !cfg.Parallel.Mobile {
		r.runMobile(ctx, acct, cfg, date, built, &run)
	}

	return run
}

// maxLoginTransitions bounds a login attempt at 25 state-machine steps
// (spec.md §8 property 3): a login that has not reached LoggedIn within
// that many transitions is stuck, not merely slow, and must fail fatally
// rather than keep stepping against a wall-clock timer.
const maxLoginTransitions = 25

func (r *Runner) runLogin(ctx context.Context, page browser.Page, acct account.Account) error {
	la := login.Account{Email: acct.Email, Password: acct.Password, RecoveryEmail: acct.RecoveryEmail, TOTPSeed: acct.TOTPSeed}
	for transitions := 0; transitions < maxLoginTransitions; transitions++ {
		state, err := r.deps.LoginMachine.Step(ctx, page, la)
		if err != nil {
			return err
		}
		if state == login.StateLoggedIn {
			return nil
		}
		select {
		case <-time.After(time.Duration(r.deps.RNG.FloatIn(300, 900)) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	reason := fmt.Sprintf("login did not reach LoggedIn within %d transitions", maxLoginTransitions)
	return fmt.Errorf("%w: %s", errtax.LoginFatalError(reason), reason)
}

func (r *Runner) checkBan(ctx context.Context, acctEmail string, page browser.Page) ban.Verdict {
	content, _ := page.Content(ctx)
	fused := ban.Fuse(ban.FromURL(page.URL()), ban.FromText(content))
	v := r.deps.BanDetector.Observe(acctEmail, fused)
	if v.Severity >= ban.SeveritySoftBan {
		r.handleBan(ctx, acctEmail, v)
	}
	return v
}

func (r *Runner) handleBan(ctx context.Context, acctEmail string, v ban.Verdict) {
	if v.Severity != ban.SeverityHardBan {
		r.deps.Log.WithField("account", acctEmail).WithField("reason", v.Reason).Warn("pipeline: ban verdict")
		return
	}
	if r.deps.AccountsFilePath == "" {
		return
	}
	incident, err := ban.HandleHardBan(r.deps.AccountsFilePath, acctEmail, v.Reason, time.Now())
	if err != nil {
		r.deps.Log.WithError(err).Error("pipeline: failed to disable hard-banned account")
		return
	}
	if r.deps.Notify != nil {
		r.deps.Notify.Publish(ctx, notify.Event{
			Name: "hard_ban", Severity: notify.SeverityCritical,
			Fields: map[string]any{"account": incident.Account, "reason": incident.Reason},
		})
	}
}

func (r *Runner) runActivities(ctx context.Context, acct account.Account, date string, built *browser.Built, promos []activity.Promotion, run *history.Run) {
	handlers := r.buildHandlers(acct)
	dispatcher := activity.NewDispatcher(handlers, r.deps.JobState, r.deps.Log)
	for _, promo := range promos {
		out, err := dispatcher.Dispatch(ctx, acct.Email, date, built.Session, promo)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("activity %s: %v", promo.ID, err))
			continue
		}
		if out.Completed {
			run.TotalPoints += out.PointsEarned
			run.Activities[string(activity.Classify(promo))] += out.PointsEarned
		}
	}
}

func (r *Runner) buildHandlers(acct account.Account) map[activity.Kind]activity.Handler {
	handlers := map[activity.Kind]activity.Handler{
		activity.KindPoll:       activity.NewPollHandler(r.deps.RNG),
		activity.KindABC:        activity.NewABCHandler(r.deps.RNG),
		activity.KindThisOrThat: activity.NewThisOrThatHandler(r.deps.RNG),
		activity.KindQuiz:       activity.NewQuizHandler(r.deps.RNG),
		activity.KindURLReward:  activity.NewURLRewardHandler(r.deps.RNG),
	}
	if r.deps.NewSearchRunner != nil {
		handlers[activity.KindSearchOnBing] = activity.NewSearchOnBingHandler(
			r.deps.NewSearchRunner(config.Default(), r.deps.Locale), r.deps.Locale)
	}
	handlers[activity.KindFreeRewards] = activity.NewFreeRewardsHandler(r.deps.RNG, r.deps.Log, false, acct.PhoneNumber)
	return handlers
}

func (r *Runner) runSearch(ctx context.Context, acct account.Account, page browser.Page, cfg config.Config, persona browser.Persona, run *history.Run) {
	gen := search.NewQueryGenerator(nil, nil, r.deps.RNG)
	runnerCfg := search.Config{
		SearchEndpoint:       r.deps.SearchEndpoint,
		RefetchEveryNQueries: 3,
		StallBreakAfter:      5,
		DwellMinSeconds:      cfg.SearchSettings.SearchDelay.Min.Duration().Seconds(),
		DwellMaxSeconds:      cfg.SearchSettings.SearchDelay.Max.Duration().Seconds(),
	}
	runner := search.NewRunner(runnerCfg, gen, r.deps.RNG, r.deps.Log)
	progress := func(context.Context) (int, int, error) { return 0, cfg.SearchSettings.PerSessionMax, nil }

	res, err := runner.Run(ctx, page, r.deps.Locale, progress)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("search(%s): %v", persona, err))
		return
	}
	run.Activities["search:"+string(persona)] = res.QueriesIssued
}

// runMobile performs the desktop-then-mobile handoff: it acquires an
// OAuth token from the desktop session's cookies, opens a mobile
// persona session, and retries the mobile search loop up to
// retry_mobile_search_amount times on failure (spec.md §4.10, §4.12).
func (r *Runner) runMobile(ctx context.Context, acct account.Account, cfg config.Config, date string, desktop *browser.Built, run *history.Run) {
	var token string
	if r.deps.OAuthToken != nil {
		cookies, _ := desktop.Session.Cookies(ctx)
		t, err := r.deps.OAuthToken(ctx, cookies)
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("mobile oauth: %v", err))
			return
		}
		token = t
	}

	mobileBuilt, err := r.deps.BrowserFactory.Build(ctx, acct.Email, filepath.Join(r.deps.ProfileRoot, safeName(acct.Email)+"-mobile"), browser.Mobile, proxyURL(acct))
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("mobile browser build: %v", err))
		return
	}
	defer browser.Release(mobileBuilt)

	attempts := 1 + cfg.SearchSettings.RetryMobileSearchAmount
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		gen := search.NewQueryGenerator(nil, nil, r.deps.RNG)
		runner := search.NewRunner(search.Config{
			SearchEndpoint:       r.deps.SearchEndpoint,
			DwellMinSeconds:      cfg.SearchSettings.SearchDelay.Min.Duration().Seconds(),
			DwellMaxSeconds:      cfg.SearchSettings.SearchDelay.Max.Duration().Seconds(),
		}, gen, r.deps.RNG, r.deps.Log)
		progress := func(context.Context) (int, int, error) { return 0, cfg.SearchSettings.PerSessionMax, nil }

		res, err := runner.Run(ctx, mobileBuilt.Page, r.deps.Locale, progress)
		if err == nil {
			run.Activities["search:mobile"] = res.QueriesIssued
			lastErr = nil
			break
		}
		lastErr = err
	}
	if lastErr != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("mobile search: %v", lastErr))
	}

	// DailyCheckIn/ReadToEarn hit the mobile rewards API directly with
	// the token the OAuth handoff just acquired (spec.md §4.12 step 9);
	// they are not promotions, so they never reach the classifier-driven
	// Dispatcher and are invoked here instead.
	if r.deps.NewAPIClient != nil {
		api := r.deps.NewAPIClient(token)
		if cfg.Workers.DoDailyCheckIn {
			r.runDailyCheckIn(ctx, api, acct.Email, date, run)
		}
		if cfg.Workers.DoReadToEarn {
			r.runReadToEarn(ctx, api, acct.Email, date, run)
		}
	}
}

func (r *Runner) runDailyCheckIn(ctx context.Context, api *activity.APIClient, acctEmail, date string, run *history.Run) {
	const unitID = "daily_checkin"
	done, err := r.deps.JobState.Get(acctEmail, date)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("daily checkin: read job state: %v", err))
		return
	}
	if done[unitID] {
		return
	}

	handler := activity.NewDailyCheckInHandler(api)
	outcome, err := handler.Run(ctx, nil, activity.Promotion{})
	if markErr := r.deps.JobState.Mark(acctEmail, date, unitID, outcome.Completed, outcome.PointsEarned, time.Now()); markErr != nil {
		r.deps.Log.WithError(markErr).Warn("pipeline: failed to persist daily checkin job state")
	}
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("daily checkin: %v", err))
		return
	}
	if outcome.AlreadyDone {
		r.deps.Log.WithField("account", acctEmail).Debug("pipeline: daily checkin already claimed")
		return
	}
	run.TotalPoints += outcome.PointsEarned
	run.Activities["daily_checkin"] += outcome.PointsEarned
}

func (r *Runner) runReadToEarn(ctx context.Context, api *activity.APIClient, acctEmail, date string, run *history.Run) {
	handler := activity.NewReadToEarnHandler(api, r.deps.Log)
	outcome, err := handler.RunMobile(ctx, r.deps.JobState, acctEmail, date)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("read to earn: %v", err))
		return
	}
	run.TotalPoints += outcome.PointsEarned
	run.Activities["r2e"] += outcome.PointsEarned
}

func (r *Runner) notifyRunComplete(ctx context.Context, run history.Run) {
	if r.deps.Notify == nil {
		return
	}
	severity := notify.SeverityInfo
	if !run.Success {
		severity = notify.SeverityWarning
	}
	r.deps.Notify.Publish(ctx, notify.Event{
		Name: "run_complete", Severity: severity,
		Fields: map[string]any{
			"account":      run.Account,
			"success":      run.Success,
			"total_points": run.TotalPoints,
			"errors":       run.Errors,
		},
	})
}

func proxyURL(acct account.Account) string {
	if acct.Proxy == nil || acct.Proxy.Host == "" {
		return ""
	}
	scheme := acct.Proxy.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if acct.Proxy.User != "" {
		return fmt.Sprintf("%s://%s:%s@%s:%d", scheme, acct.Proxy.User, acct.Proxy.Pass, acct.Proxy.Host, acct.Proxy.Port)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, acct.Proxy.Host, acct.Proxy.Port)
}

func safeName(email string) string {
	out := make([]rune, 0, len(email))
	for _, c := range email {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
