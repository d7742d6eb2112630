package login

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kestrelops/rewardsbot/internal/browser"
)

// RecoveryMismatchError is raised by RecoveryCheck on a critical
// mismatch (spec.md §4.8): it is security-severity and must engage
// global standby for every account, not just this one.
type RecoveryMismatchError struct {
	Candidate string
	Expected  string
}

func (e *RecoveryMismatchError) Error() string {
	return fmt.Sprintf("login: recovery-email mismatch: page shows %q, account expects %q", e.Candidate, e.Expected)
}

// recoverySelectors are canonical places the masked recovery address
// shows up; maskedEmailRe is the full-document regex fallback.
var recoverySelectors = []string{
	`[data-testid="recoveryEmail"]`,
	`.recovery-email-display`,
	`#iRecoveryEmail`,
}

var maskedEmailRe = regexp.MustCompile(`\b([A-Za-z0-9]{1,2})[A-Za-z0-9]*\*+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)

// RecoveryCheck extracts a masked recovery address from page (via the
// canonical selectors, falling back to a full-document regex scan) and
// compares it against acct. It returns (false, nil, nil) if no masked
// address is present on this page at all - recovery-email display is
// not guaranteed on every page, so absence is not itself a signal.
func RecoveryCheck(ctx context.Context, page browser.Page, acct Account) (bool, *RecoveryMismatchError, error) {
	candidate, domain, visiblePrefix, found, err := extractCandidate(ctx, page)
	if err != nil {
		return false, nil, err
	}
	if !found {
		return false, nil, nil
	}

	for _, known := range []string{acct.RecoveryEmail, acct.Email} {
		if known == "" {
			continue
		}
		knownPrefix, knownDomain := splitEmail(known)
		if !strings.EqualFold(knownDomain, domain) {
			continue
		}
		if prefixMatches(visiblePrefix, knownPrefix) {
			return true, nil, nil
		}
	}

	expected := acct.RecoveryEmail
	if expected == "" {
		expected = acct.Email
	}
	return true, &RecoveryMismatchError{Candidate: candidate, Expected: expected}, nil
}

func extractCandidate(ctx context.Context, page browser.Page) (candidate, domain, visiblePrefix string, found bool, err error) {
	for _, sel := range recoverySelectors {
		present, perr := page.WaitForSelector(ctx, sel, 200*time.Millisecond)
		if perr != nil {
			continue
		}
		if !present {
			continue
		}
		text, eerr := page.Evaluate(ctx, fmt.Sprintf("document.querySelector(%q)?.textContent", sel))
		if eerr != nil {
			continue
		}
		if s, ok := text.(string); ok {
			if pfx, dom, ok2 := parseMasked(s); ok2 {
				return s, dom, pfx, true, nil
			}
		}
	}

	content, cerr := page.Content(ctx)
	if cerr != nil {
		return "", "", "", false, fmt.Errorf("login: read page content: %w", cerr)
	}
	m := maskedEmailRe.FindStringSubmatch(content)
	if m == nil {
		return "", "", "", false, nil
	}
	return m[0], m[2], m[1], true, nil
}

func parseMasked(s string) (visiblePrefix, domain string, ok bool) {
	m := maskedEmailRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func splitEmail(email string) (local, domain string) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, ""
	}
	return email[:at], email[at+1:]
}

// prefixMatches implements spec.md §4.8's strict/lenient rule: strict
// match on 2 visible characters, lenient (first character only) match
// on 1.
func prefixMatches(visible, known string) bool {
	if visible == "" || known == "" {
		return false
	}
	n := len(visible)
	if n > 2 {
		n = 2
	}
	if len(known) < n {
		return false
	}
	return strings.EqualFold(visible[:n], known[:n])
}
