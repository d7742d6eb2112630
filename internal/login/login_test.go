package login

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kestrelops/rewardsbot/internal/rng"
)

type fakePage struct {
	url      string
	title    string
	content  string
	present  map[string]bool
	clicked  []string
	typed    map[string]string
}

func newFakePage() *fakePage {
	return &fakePage{present: make(map[string]bool), typed: make(map[string]string)}
}

func (p *fakePage) Goto(context.Context, string) error { return nil }
func (p *fakePage) URL() string                        { return p.url }
func (p *fakePage) WaitForSelector(_ context.Context, selector string, _ time.Duration) (bool, error) {
	return p.present[selector], nil
}
func (p *fakePage) Click(_ context.Context, selector string) error {
	p.clicked = append(p.clicked, selector)
	return nil
}
func (p *fakePage) Type(_ context.Context, selector, text string, perChar func() time.Duration) error {
	p.typed[selector] = text
	if perChar != nil {
		_ = perChar()
	}
	return nil
}
func (p *fakePage) Evaluate(_ context.Context, script string) (any, error) {
	if script == "document.title" {
		return p.title, nil
	}
	return nil, nil
}
func (p *fakePage) Content(context.Context) (string, error) { return p.content, nil }
func (p *fakePage) Closed() bool                            { return false }
func (p *fakePage) Close() error                             { return nil }

func testSelectors() Selectors {
	return Selectors{
		PortalHost:     "rewards.example",
		LoginHost:      "login.example",
		PortalPresence: "#portal-home",
		EmailInput:     "#email",
		PasswordInput:  "#password",
		OTPInput:       "#otp",
		KMSIButton:     "#kmsi",
	}
}

func TestClassifyLoggedIn(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://rewards.example/home"
	p.present["#portal-home"] = true

	state, err := m.Classify(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StateLoggedIn, state)
}

func TestClassifyEmailPage(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.present["#email"] = true

	state, err := m.Classify(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StateEmailPage, state)
}

func TestClassifyBlockedByTitle(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.title = "We can't sign you in"

	state, err := m.Classify(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StateBlocked, state)
}

func TestStepEmailPageTypesAndSubmits(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.present["#email"] = true

	state, err := m.Step(context.Background(), p, Account{Email: "a@x.test", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, StateEmailPage, state)
	require.Equal(t, "a@x.test", p.typed["#email"])
	require.NotEmpty(t, p.clicked)
}

func TestStepTwoFactorWithoutSeedIsBlocked(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.present["#otp"] = true

	_, err := m.Step(context.Background(), p, Account{Email: "a@x.test"})
	require.Error(t, err)
	var be *BlockedError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "manual-2fa", be.Kind)
}

func TestStepTwoFactorWithSeedTypesCode(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.present["#otp"] = true

	_, err := m.Step(context.Background(), p, Account{Email: "a@x.test", TOTPSeed: rfcSeed})
	require.NoError(t, err)
	require.Len(t, p.typed["#otp"], 6)
}

func TestStepBlockedRaisesAccountSuspended(t *testing.T) {
	m := NewMachine(testSelectors(), rng.New(), logrus.NewEntry(logrus.New()))
	p := newFakePage()
	p.url = "https://login.example/start"
	p.title = "blocked"
	p.content = "Your account has been suspended for unusual activity."

	_, err := m.Step(context.Background(), p, Account{Email: "a@x.test"})
	require.Error(t, err)
	var be *BlockedError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "account-suspended", be.Kind)
}
