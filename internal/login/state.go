// Package login implements the Login State Machine (spec.md §4.7): an
// observation-driven sequence that advances a browser.Page from
// "unknown" through email/password/2FA/passkey prompts to an
// authenticated session, detecting sign-in blocks along the way.
package login

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/rng"
)

// State is the classification the detector assigns to the current page.
type State string

const (
	StateLoggedIn          State = "LoggedIn"
	StateEmailPage         State = "EmailPage"
	StatePasswordPage      State = "PasswordPage"
	StateTwoFactorRequired State = "TwoFactorRequired"
	StatePasskeyPrompt     State = "PasskeyPrompt"
	StateKMSI              State = "KMSI"
	StateBlocked           State = "Blocked"
	StateEmailSubmitted    State = "EmailSubmitted"
	StateUnknown           State = "Unknown"
)

// BlockedError is raised when the classifier observes a sign-in block.
// Kind distinguishes an account-suspension (fatal for this account)
// from a generic manual-intervention block.
type BlockedError struct {
	Kind   string
	Phrase string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("login: blocked (%s): %s", e.Kind, e.Phrase)
}

// Account carries the credentials the state machine needs.
type Account struct {
	Email          string
	Password       string
	RecoveryEmail  string
	TOTPSeed       string
}

var (
	blockedPhrases = []string{"can't sign you in", "blocked", "locked"}
	suspendedPhrases = []string{"account has been suspended", "account suspended"}
	passkeyPhrases = []string{"passkey", "windows hello", "biometric"}
)

// Selectors is the set of element/URL probes the classifier uses. A
// real implementation binds these to the rewards portal's actual DOM;
// they are parameterized here so the classifier stays portal-agnostic
// and testable against a fake Page.
type Selectors struct {
	PortalHost          string
	LoginHost           string
	PortalPresence      string
	EmailInput          string
	PasswordInput       string
	OTPInput            string
	KMSIButton          string
	OAuthAuthorizePath  string
}

// Machine drives one login attempt.
type Machine struct {
	sel Selectors
	rng *rng.Source
	log *logrus.Entry
}

// NewMachine returns a Machine bound to sel.
func NewMachine(sel Selectors, r *rng.Source, log *logrus.Entry) *Machine {
	return &Machine{sel: sel, rng: r, log: log}
}

// Classify implements the first-match-wins rules of spec.md §4.7.
func (m *Machine) Classify(ctx context.Context, page browser.Page) (State, error) {
	url := page.URL()
	title, _ := page.Evaluate(ctx, "document.title")
	titleStr, _ := title.(string)

	if strings.Contains(url, m.sel.PortalHost) {
		present, err := page.WaitForSelector(ctx, m.sel.PortalPresence, 500*time.Millisecond)
		if err == nil && present {
			return StateLoggedIn, nil
		}
	}

	if strings.Contains(url, m.sel.LoginHost) {
		if present, _ := page.WaitForSelector(ctx, m.sel.EmailInput, 300*time.Millisecond); present {
			return StateEmailPage, nil
		}
		if present, _ := page.WaitForSelector(ctx, m.sel.PasswordInput, 300*time.Millisecond); present {
			return StatePasswordPage, nil
		}
		if present, _ := page.WaitForSelector(ctx, m.sel.OTPInput, 300*time.Millisecond); present {
			return StateTwoFactorRequired, nil
		}
		lowerTitle := strings.ToLower(titleStr)
		if matchAny(lowerTitle, passkeyPhrases) {
			return StatePasskeyPrompt, nil
		}
		if matchAny(lowerTitle, blockedPhrases) {
			return StateBlocked, nil
		}
	}

	if m.sel.OAuthAuthorizePath != "" && strings.Contains(url, m.sel.OAuthAuthorizePath) {
		return StateEmailSubmitted, nil
	}

	return StateUnknown, nil
}

func matchAny(haystack string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}

// typeHuman types text into selector using per-character delays scaled
// by speedFactor relative to the base typing model (spec.md §4.4, §4.7:
// password 2x faster than email, TOTP 3x faster).
func (m *Machine) typeHuman(ctx context.Context, page browser.Page, selector, text string, baseMS, speedFactor float64) error {
	return page.Type(ctx, selector, text, func() time.Duration {
		return time.Duration(m.rng.TypingDelay(baseMS/speedFactor)) * time.Millisecond
	})
}

// securityPhraseRe extracts the matched block phrase for incident logging.
var securityPhraseRe = regexp.MustCompile(`(?i)` + strings.Join(append(append([]string{}, blockedPhrases...), suspendedPhrases...), "|"))

// Step runs one observation-act cycle: classify the page, then perform
// the action for that state. It returns the resulting state (LoggedIn
// or Blocked terminate the caller's loop; any other state means "call
// Step again").
func (m *Machine) Step(ctx context.Context, page browser.Page, acct Account) (State, error) {
	state, err := m.Classify(ctx, page)
	if err != nil {
		return "", fmt.Errorf("login: classify: %w", err)
	}

	switch state {
	case StateLoggedIn:
		return state, nil

	case StateEmailPage:
		if err := m.typeHuman(ctx, page, m.sel.EmailInput, acct.Email, 140, 1.0); err != nil {
			return "", fmt.Errorf("login: type email: %w", err)
		}
		if err := page.Click(ctx, m.sel.EmailInput+" ~ button[type=submit]"); err != nil {
			return "", fmt.Errorf("login: submit email: %w", err)
		}
		return state, nil

	case StatePasswordPage:
		if err := m.typeHuman(ctx, page, m.sel.PasswordInput, acct.Password, 140, 2.0); err != nil {
			return "", fmt.Errorf("login: type password: %w", err)
		}
		if err := page.Click(ctx, m.sel.PasswordInput+" ~ button[type=submit]"); err != nil {
			return "", fmt.Errorf("login: submit password: %w", err)
		}
		return state, nil

	case StateTwoFactorRequired:
		if acct.TOTPSeed == "" {
			return "", &BlockedError{Kind: "manual-2fa", Phrase: "no totp seed configured"}
		}
		code, err := CurrentTOTP(acct.TOTPSeed)
		if err != nil {
			return "", fmt.Errorf("login: compute totp: %w", err)
		}
		if err := m.typeHuman(ctx, page, m.sel.OTPInput, code, 140, 3.0); err != nil {
			return "", fmt.Errorf("login: type totp: %w", err)
		}
		if err := page.Click(ctx, m.sel.OTPInput+" ~ button[type=submit]"); err != nil {
			return "", fmt.Errorf("login: submit totp: %w", err)
		}
		return state, nil

	case StatePasskeyPrompt:
		if err := dismissPasskeyPrompt(ctx, page, m.rng); err != nil {
			m.log.WithError(err).Debug("passkey prompt: no dismissal matched, continuing (fail-open)")
		}
		return state, nil

	case StateKMSI:
		if err := page.Click(ctx, m.sel.KMSIButton); err != nil {
			return "", fmt.Errorf("login: click kmsi: %w", err)
		}
		return state, nil

	case StateBlocked:
		content, _ := page.Content(ctx)
		phrase := securityPhraseRe.FindString(content)
		if phrase == "" {
			phrase = "unknown block phrase"
		}
		kind := "sign-in-blocked"
		if matchAny(strings.ToLower(content), suspendedPhrases) {
			kind = "account-suspended"
		}
		return "", &BlockedError{Kind: kind, Phrase: phrase}

	case StateEmailSubmitted, StateUnknown:
		return state, nil

	default:
		return state, nil
	}
}

// passkeyDismissSelectors are tried in spec.md §4.7's stated fallback
// order.
var passkeyDismissSelectors = []string{
	`[data-testid="secondaryButton"]`,
	`button:has-text("Skip")`,
	`button:has-text("Later")`,
	`button:has-text("Not now")`,
	`button:has-text("Cancel")`,
	`[aria-label="Close"]`,
}

func dismissPasskeyPrompt(ctx context.Context, page browser.Page, r *rng.Source) error {
	for _, sel := range passkeyDismissSelectors {
		present, _ := page.WaitForSelector(ctx, sel, 400*time.Millisecond)
		if present {
			return page.Click(ctx, sel)
		}
	}
	// QR-code dialog: try Escape via a synthetic key event through Evaluate,
	// then fall through to DOM-level removal as a last resort.
	if _, err := page.Evaluate(ctx, `document.dispatchEvent(new KeyboardEvent('keydown', {key: 'Escape'}))`); err == nil {
		present, _ := page.WaitForSelector(ctx, `[role="dialog"]`, 300*time.Millisecond)
		if !present {
			return nil
		}
	}
	_, err := page.Evaluate(ctx, `document.querySelectorAll('[role="dialog"]').forEach((el) => el.remove())`)
	return err
}
