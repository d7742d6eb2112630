package account

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileArray(t *testing.T) {
	raw := []byte(`[
  // primary account
  {"email": "a@x.test", "password": "pw"},
  {"email": "b@x.test", "password": "pw2", "enabled": false}
]`)
	accounts, err := LoadFile(raw)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.True(t, accounts[0].Enabled, "missing enabled field defaults to active")
	require.False(t, accounts[1].Enabled)
}

func TestLoadFileWrappedObject(t *testing.T) {
	raw := []byte(`{"accounts": [{"email": "a@x.test", "password": "pw"}]}`)
	accounts, err := LoadFile(raw)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "a@x.test", accounts[0].Email)
}

func TestDisableInsertsCommentAndSetsEnabledFalse(t *testing.T) {
	raw := []byte(`[
  // comment kept verbatim
  {"email": "a@x.test", "password": "pw", "enabled": true},
  {"email": "b@x.test", "password": "pw2"}
]`)
	out, err := Disable(raw, "a@x.test", "2026-07-31", "hard-ban: order-blocked")
	require.NoError(t, err)

	require.Contains(t, string(out), "// BANNED 2026-07-31: hard-ban: order-blocked")
	require.Contains(t, string(out), "comment kept verbatim")

	accounts, err := LoadFile(out)
	require.NoError(t, err)
	require.False(t, accounts[0].Enabled)
	require.True(t, accounts[1].Enabled)
}

func TestDisableIsIdempotent(t *testing.T) {
	raw := []byte(`[{"email": "a@x.test", "password": "pw", "enabled": true}]`)
	once, err := Disable(raw, "a@x.test", "2026-07-31", "hard-ban")
	require.NoError(t, err)

	twice, err := Disable(once, "a@x.test", "2026-07-31", "hard-ban")
	require.NoError(t, err)

	require.Equal(t, string(once), string(twice))
}

func TestDisableInsertsEnabledFieldWhenAbsent(t *testing.T) {
	raw := []byte(`[{"email": "a@x.test", "password": "pw"}]`)
	out, err := Disable(raw, "a@x.test", "2026-07-31", "hard-ban")
	require.NoError(t, err)

	accounts, err := LoadFile(out)
	require.NoError(t, err)
	require.False(t, accounts[0].Enabled)
}

func TestDisableUnknownEmailErrors(t *testing.T) {
	raw := []byte(`[{"email": "a@x.test", "password": "pw"}]`)
	_, err := Disable(raw, "missing@x.test", "2026-07-31", "x")
	require.Error(t, err)
}
