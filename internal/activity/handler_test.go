package activity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
	"github.com/kestrelops/rewardsbot/internal/search"
)

type fakeActivityPage struct {
	url          string
	closed       bool
	selectorHits map[string]bool
	evalResults  map[string]any
	clicks       []string
}

func (p *fakeActivityPage) Goto(_ context.Context, url string) error { p.url = url; return nil }
func (p *fakeActivityPage) URL() string                              { return p.url }
func (p *fakeActivityPage) WaitForSelector(_ context.Context, selector string, _ time.Duration) (bool, error) {
	if p.selectorHits == nil {
		return true, nil
	}
	hit, ok := p.selectorHits[selector]
	if !ok {
		return true, nil
	}
	return hit, nil
}
func (p *fakeActivityPage) Click(_ context.Context, selector string) error {
	p.clicks = append(p.clicks, selector)
	return nil
}
func (p *fakeActivityPage) Type(context.Context, string, string, func() time.Duration) error {
	return nil
}
func (p *fakeActivityPage) Evaluate(_ context.Context, script string) (any, error) {
	for k, v := range p.evalResults {
		if strings.Contains(script, k) {
			return v, nil
		}
	}
	return nil, nil
}
func (p *fakeActivityPage) Content(context.Context) (string, error) { return "", nil }
func (p *fakeActivityPage) Closed() bool                            { return p.closed }
func (p *fakeActivityPage) Close() error                             { p.closed = true; return nil }

type fakeActivitySession struct {
	pages []*fakeActivityPage
	next  *fakeActivityPage
}

func (s *fakeActivitySession) NewPage(context.Context) (browser.Page, error) {
	p := s.next
	if p == nil {
		p = &fakeActivityPage{}
	}
	s.pages = append(s.pages, p)
	return p, nil
}
func (s *fakeActivitySession) Cookies(context.Context) ([]browser.Cookie, error)   { return nil, nil }
func (s *fakeActivitySession) SetCookies(context.Context, []browser.Cookie) error { return nil }
func (s *fakeActivitySession) AddInitScript(context.Context, string) error        { return nil }
func (s *fakeActivitySession) SetRequestInterceptor(context.Context, browser.RequestInterceptor) error {
	return nil
}
func (s *fakeActivitySession) Closed() bool { return false }
func (s *fakeActivitySession) Close() error { return nil }

func TestPollHandlerCompletesAndClosesTab(t *testing.T) {
	sess := &fakeActivitySession{}
	h := NewPollHandler(rng.New())
	promo := Promotion{ID: "p1", URL: "https://rewards.bing.com/poll", PointProgressMax: 10}

	out, err := h.Run(context.Background(), sess, promo)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, 10, out.PointsEarned)
	require.Len(t, sess.pages, 1)
	require.True(t, sess.pages[0].closed)
}

func TestABCHandlerRunsUntilQuestionBudgetExhausted(t *testing.T) {
	page := &fakeActivityPage{selectorHits: map[string]bool{".quiz-completed-icon": false}}
	sess := &fakeActivitySession{next: page}
	h := NewABCHandler(rng.New())

	out, err := h.Run(context.Background(), sess, Promotion{ID: "p2", PointProgressMax: 10})
	require.NoError(t, err)
	require.False(t, out.Completed) // completion marker never flips true in this fake
	require.True(t, page.closed)
	require.Equal(t, h.maxQuestions, len(page.clicks)/2) // one option click + one "next" click per iteration
}

func TestQuizHandlerEightOptionVariant(t *testing.T) {
	page := &fakeActivityPage{
		evalResults: map[string]any{
			"__quizState": QuizState{OptionCount: 8, CorrectOptions: []string{"2", "5"}},
		},
	}
	sess := &fakeActivitySession{next: page}
	h := NewQuizHandler(rng.New())

	out, err := h.Run(context.Background(), sess, Promotion{PointProgressMax: 40})
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Contains(t, page.clicks, "[data-option='2']")
	require.Contains(t, page.clicks, "[data-option='5']")
}

func TestQuizHandlerFourOptionVariant(t *testing.T) {
	page := &fakeActivityPage{
		evalResults: map[string]any{
			"__quizState": QuizState{OptionCount: 4, CorrectAnswer: "1"},
		},
	}
	sess := &fakeActivitySession{next: page}
	h := NewQuizHandler(rng.New())

	out, err := h.Run(context.Background(), sess, Promotion{PointProgressMax: 30})
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Contains(t, page.clicks, "[data-option='1']")
}

func TestURLRewardHandlerDwellsThenCompletes(t *testing.T) {
	sess := &fakeActivitySession{}
	h := NewURLRewardHandler(rng.New())
	h.dwellMinMS, h.dwellMaxMS = 1, 2
	promo := Promotion{URL: "https://example.com/r", PointProgressMax: 5}

	start := time.Now()
	out, err := h.Run(context.Background(), sess, promo)
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.True(t, time.Since(start) >= 0)
}

type fakeSearchRunner struct {
	result search.Result
	err    error
}

func (f *fakeSearchRunner) Run(context.Context, browser.Page, string, search.ProgressFetcher) (search.Result, error) {
	return f.result, f.err
}

func TestSearchOnBingHandlerDelegatesToRunner(t *testing.T) {
	sess := &fakeActivitySession{}
	runner := &fakeSearchRunner{result: search.Result{Completed: true, QueriesIssued: 4}}
	h := NewSearchOnBingHandler(runner, "en-US")

	out, err := h.Run(context.Background(), sess, Promotion{PointProgressMax: 100})
	require.NoError(t, err)
	require.True(t, out.Completed)
	require.Equal(t, 100, out.PointsEarned)
}

func TestFreeRewardsHandlerSkippedWhenDisabled(t *testing.T) {
	sess := &fakeActivitySession{}
	h := NewFreeRewardsHandler(rng.New(), logrus.NewEntry(logrus.New()), false, "")

	out, err := h.Run(context.Background(), sess, Promotion{})
	require.NoError(t, err)
	require.False(t, out.Completed)
	require.Empty(t, sess.pages)
}

func TestFreeRewardsHandlerSkippedWhenNoCards(t *testing.T) {
	page := &fakeActivityPage{selectorHits: map[string]bool{"[data-bi-name='freeRewardsCard'][data-price='0']": false}}
	sess := &fakeActivitySession{next: page}
	h := NewFreeRewardsHandler(rng.New(), logrus.NewEntry(logrus.New()), true, "+15551234567")

	out, err := h.Run(context.Background(), sess, Promotion{})
	require.NoError(t, err)
	require.False(t, out.Completed)
}
