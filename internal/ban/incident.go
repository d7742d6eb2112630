package ban

import (
	"fmt"
	"os"
	"time"

	"github.com/kestrelops/rewardsbot/internal/account"
)

// Incident is a security-severity event surfaced to the Notification
// Sink and logged at warn/error level by the caller.
type Incident struct {
	Account  string
	Severity Severity
	Reason   string
	At       time.Time
}

func (i Incident) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Account, i.Reason)
}

// HandleHardBan is the terminal action for a hard-ban verdict: it
// rewrites the account file in place via account.Disable, preserving
// comments, and returns the Incident for notification. accountsPath is
// the on-disk accounts file; now is injected for testability.
func HandleHardBan(accountsPath, acctEmail, reason string, now time.Time) (Incident, error) {
	raw, err := os.ReadFile(accountsPath)
	if err != nil {
		return Incident{}, fmt.Errorf("ban: read accounts file: %w", err)
	}
	date := now.Format("2006-01-02")
	updated, err := account.Disable(raw, acctEmail, date, reason)
	if err != nil {
		return Incident{}, fmt.Errorf("ban: disable account: %w", err)
	}
	if err := os.WriteFile(accountsPath, updated, 0o644); err != nil {
		return Incident{}, fmt.Errorf("ban: write accounts file: %w", err)
	}
	return Incident{Account: acctEmail, Severity: SeverityHardBan, Reason: reason, At: now}, nil
}
