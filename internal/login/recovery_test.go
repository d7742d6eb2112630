package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecoveryCheckMatchesTwoVisibleChars(t *testing.T) {
	p := newFakePage()
	p.content = "Recovery email: jo******@x.test"

	found, mismatch, err := RecoveryCheck(context.Background(), p, Account{Email: "john@x.test"})
	require.NoError(t, err)
	require.True(t, found)
	require.Nil(t, mismatch)
}

func TestRecoveryCheckLenientOnOneVisibleChar(t *testing.T) {
	p := newFakePage()
	p.content = "Recovery email: j*****@x.test"

	found, mismatch, err := RecoveryCheck(context.Background(), p, Account{Email: "john@x.test"})
	require.NoError(t, err)
	require.True(t, found)
	require.Nil(t, mismatch)
}

func TestRecoveryCheckDetectsMismatch(t *testing.T) {
	p := newFakePage()
	p.content = "Recovery email: zz******@other.test"

	found, mismatch, err := RecoveryCheck(context.Background(), p, Account{Email: "john@x.test", RecoveryEmail: "backup@x.test"})
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, mismatch)
}

func TestRecoveryCheckStrictOnTwoVisibleCharsDivergesFromLenient(t *testing.T) {
	// The page shows two visible characters ("jx"), and they share only
	// their first character with the account's real prefix ("jo..."). A
	// 1-char lenient check would call this a match; the 2-char strict
	// rule spec.md §4.8 requires must reject it as a mismatch.
	p := newFakePage()
	p.content = "Recovery email: jx******@x.test"

	found, mismatch, err := RecoveryCheck(context.Background(), p, Account{Email: "john@x.test"})
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, mismatch, "2 visible chars diverging in the second position must be flagged strictly, not passed leniently")
}

func TestRecoveryCheckAbsentIsNotAMismatch(t *testing.T) {
	p := newFakePage()
	p.content = "Nothing relevant here."

	found, mismatch, err := RecoveryCheck(context.Background(), p, Account{Email: "john@x.test"})
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, mismatch)
}
