package ban

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromURLMatchesSuspended(t *testing.T) {
	v := FromURL("https://rewards.example/suspended/notice")
	require.Equal(t, SeveritySoftBan, v.Severity)
}

func TestFromTextHardBanBeatsWarning(t *testing.T) {
	v := FromText("Your request was blocked: order-blocked and also rate-limited")
	require.Equal(t, SeverityHardBan, v.Severity)
}

func TestFromHTTP403IsHardBan(t *testing.T) {
	v := FromHTTP(403, "", "", false)
	require.Equal(t, SeverityHardBan, v.Severity)
}

func TestFromHTTPRetryAfterIsWarning(t *testing.T) {
	v := FromHTTP(200, "30", "", true)
	require.Equal(t, SeverityWarning, v.Severity)
}

func TestFuseWorstWins(t *testing.T) {
	v := Fuse(Verdict{Severity: SeverityWarning}, Verdict{Severity: SeverityHardBan}, Verdict{Severity: SeveritySoftBan})
	require.Equal(t, SeverityHardBan, v.Severity)
}

func TestDetectorEscalatesThirdWarningToSoftBan(t *testing.T) {
	d := New()
	v1 := d.Observe("a@x.test", Verdict{Severity: SeverityWarning, Reason: "rate-limited"})
	require.Equal(t, SeverityWarning, v1.Severity)
	v2 := d.Observe("a@x.test", Verdict{Severity: SeverityWarning, Reason: "rate-limited"})
	require.Equal(t, SeverityWarning, v2.Severity)
	v3 := d.Observe("a@x.test", Verdict{Severity: SeverityWarning, Reason: "rate-limited"})
	require.Equal(t, SeveritySoftBan, v3.Severity)
	require.Equal(t, 0, d.WarningCount("a@x.test"))
}

func TestDetectorHardBanResetsWarnings(t *testing.T) {
	d := New()
	d.Observe("a@x.test", Verdict{Severity: SeverityWarning})
	d.Observe("a@x.test", Verdict{Severity: SeverityHardBan, Reason: "order-blocked"})
	require.Equal(t, 0, d.WarningCount("a@x.test"))
}

func TestConsoleMessageMatches(t *testing.T) {
	require.True(t, ConsoleMessageMatches("Account Suspended due to policy"))
	require.False(t, ConsoleMessageMatches("just a normal log line"))
}

func TestHandleHardBanDisablesAccount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`[{"email": "a@x.test", "password": "pw", "enabled": true}]`), 0o644))

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	inc, err := HandleHardBan(path, "a@x.test", "order-blocked", now)
	require.NoError(t, err)
	require.Equal(t, SeverityHardBan, inc.Severity)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "BANNED 2026-07-31")
}
