package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/account"
	"github.com/kestrelops/rewardsbot/internal/activity"
	"github.com/kestrelops/rewardsbot/internal/ban"
	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/config"
	"github.com/kestrelops/rewardsbot/internal/history"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/login"
	"github.com/kestrelops/rewardsbot/internal/notify"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

type pipelineFakePage struct {
	url     string
	content string
	closed  bool
}

func (p *pipelineFakePage) Goto(_ context.Context, url string) error { p.url = url; return nil }
func (p *pipelineFakePage) URL() string                              { return p.url }
func (p *pipelineFakePage) WaitForSelector(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
func (p *pipelineFakePage) Click(context.Context, string) error { return nil }
func (p *pipelineFakePage) Type(context.Context, string, string, func() time.Duration) error {
	return nil
}
func (p *pipelineFakePage) Evaluate(context.Context, string) (any, error) { return "Rewards", nil }
func (p *pipelineFakePage) Content(context.Context) (string, error)      { return p.content, nil }
func (p *pipelineFakePage) Closed() bool                                  { return p.closed }
func (p *pipelineFakePage) Close() error                                  { p.closed = true; return nil }

type pipelineFakeSession struct {
	page   *pipelineFakePage
	closed bool
}

func (s *pipelineFakeSession) NewPage(context.Context) (browser.Page, error) {
	s.page = &pipelineFakePage{url: "https://rewards.bing.com/"}
	return s.page, nil
}
func (s *pipelineFakeSession) Cookies(context.Context) ([]browser.Cookie, error)   { return nil, nil }
func (s *pipelineFakeSession) SetCookies(context.Context, []browser.Cookie) error { return nil }
func (s *pipelineFakeSession) AddInitScript(context.Context, string) error        { return nil }
func (s *pipelineFakeSession) SetRequestInterceptor(context.Context, browser.RequestInterceptor) error {
	return nil
}
func (s *pipelineFakeSession) Closed() bool { return s.closed }
func (s *pipelineFakeSession) Close() error { s.closed = true; return nil }

type pipelineFakeDriver struct{}

func (d *pipelineFakeDriver) Launch(context.Context, browser.SessionSpec) (browser.Session, error) {
	return &pipelineFakeSession{}, nil
}

type pipelineFakeAntiDetect struct{}

func (a *pipelineFakeAntiDetect) Install(context.Context, browser.Session, browser.Fingerprint, browser.Viewport, bool) error {
	return nil
}

func newTestRunner(t *testing.T) (*Runner, *history.FileStore) {
	t.Helper()
	r := rng.New()
	log := logrus.NewEntry(logrus.New())

	factory := browser.NewFactory(&pipelineFakeDriver{}, &pipelineFakeAntiDetect{}, browser.NewEdgeVersionCache(time.Hour), r, log,
		"en-US", "America/New_York", "https://rewards.bing.com/", 8, 8, nil)

	sel := login.Selectors{PortalHost: "rewards.bing.com", PortalPresence: "Rewards"}
	machine := login.NewMachine(sel, r, log)

	jobs, err := jobstate.New(t.TempDir())
	require.NoError(t, err)
	hist, err := history.NewFileStore(t.TempDir())
	require.NoError(t, err)

	sink := notify.NewSink(log, time.Second, notify.NewLogTransport(log))

	deps := Deps{
		BrowserFactory: factory,
		LoginMachine:   machine,
		BanDetector:    ban.New(),
		JobState:       jobs,
		History:        hist,
		Notify:         sink,
		RNG:            r,
		Log:            log,
		ProfileRoot:    t.TempDir(),
		SearchEndpoint: "https://rewards.bing.com/search",
		Locale:         "en-US",
	}
	return New(deps), hist
}

func TestPipelineRunSucceedsOnImmediateLogin(t *testing.T) {
	runner, hist := newTestRunner(t)
	acct := account.Account{Email: "user@example.com", Password: "pw", Enabled: true}

	run := runner.Run(context.Background(), acct, config.Config{}, "2026-07-31", nil)
	require.True(t, run.Success)
	require.Empty(t, run.Errors)

	stored, err := hist.History(context.Background(), acct.Email, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestPipelineRunSkipsWhenGlobalStandby(t *testing.T) {
	runner, _ := newTestRunner(t)
	acct := account.Account{Email: "user2@example.com", Password: "pw", Enabled: true}

	run := runner.Run(context.Background(), acct, config.Config{}, "2026-07-31", func() bool { return true })
	require.False(t, run.Success)
	require.Contains(t, run.Errors[0], "standby")
}

func TestRunLoginFailsAtTransitionBoundNotWallClock(t *testing.T) {
	runner, _ := newTestRunner(t)

	// LoginHost is "" in newTestRunner's Selectors, so strings.Contains
	// matches any URL not already classified as the portal; EmailInput
	// is likewise "" and the fake page's WaitForSelector ignores the
	// selector argument, so Classify returns StateEmailPage forever and
	// Step never reaches LoggedIn. Without the 25-transition bound this
	// would keep stepping indefinitely, since the context has no deadline.
	page := &pipelineFakePage{url: "https://login.live.com/unknown"}
	acct := account.Account{Email: "user4@example.com", Password: "pw"}

	err := runner.runLogin(context.Background(), page, acct)
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("%d transitions", maxLoginTransitions))
}

func TestPipelineDispatchesPromotions(t *testing.T) {
	runner, _ := newTestRunner(t)
	runner.deps.Promotions = func(context.Context, browser.Page) ([]activity.Promotion, error) {
		return []activity.Promotion{{ID: "p1", PromotionType: "urlreward", Name: "Read an article", URL: "https://example.com/a", PointProgressMax: 10}}, nil
	}
	acct := account.Account{Email: "user3@example.com", Password: "pw", Enabled: true}

	run := runner.Run(context.Background(), acct, config.Config{}, "2026-07-31", nil)
	require.True(t, run.Success)
	require.Equal(t, 10, run.TotalPoints)
}
