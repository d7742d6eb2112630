package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripCommentsIgnoresStringContents(t *testing.T) {
	src := []byte(`{"a": "// not a comment", "b": "/* also not */", "c": 1 // real comment
}`)
	out := StripComments(src)
	require.Contains(t, string(out), `"// not a comment"`)
	require.Contains(t, string(out), `"/* also not */"`)
	require.NotContains(t, string(out), "real comment")
}

func TestStripCommentsBlockComment(t *testing.T) {
	src := []byte("{\"a\": 1, /* drop\nme */ \"b\": 2}")
	out := StripComments(src)
	require.NotContains(t, string(out), "drop")
}

func TestStripTrailingCommasBeforeBraceAndBracket(t *testing.T) {
	src := []byte(`{"a": [1, 2,], "b": 3,}`)
	out := StripTrailingCommas(src)
	require.JSONEq(t, `{"a":[1,2],"b":3}`, string(out))
}

func TestParseJSONCEndToEnd(t *testing.T) {
	src := []byte(`{
  // clusters to run
  "clusters": 3,
  "workers": {
    "do_desktop_search": true,
    "do_mobile_search": true,
  },
}`)
	cfg, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Clusters)
	require.True(t, cfg.Workers.DoDesktopSearch)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	src := []byte(`{"clusters": 1, "totally_unknown_option": true}`)
	_, err := Parse(src)
	require.Error(t, err)
}

func TestParseRejectsInvalidClusters(t *testing.T) {
	src := []byte(`{"clusters": 0}`)
	_, err := Parse(src)
	require.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	src := []byte(`{"clusters": 1, "search_settings": {"search_delay": {"min": "not-a-duration"}}}`)
	_, err := Parse(src)
	require.Error(t, err)
}

func TestSaveRoundTripsRecognisedKeys(t *testing.T) {
	cfg := Default()
	cfg.Clusters = 7
	cfg.SearchSettings.RetryMobileSearchAmount = 5

	b, err := Save(cfg)
	require.NoError(t, err)

	reloaded, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestNormalizeMatchesManualPipeline(t *testing.T) {
	src := []byte(`{"a": 1, /* c */ "b": [1,2,],}`)
	require.Equal(t, string(StripTrailingCommas(StripComments(src))), string(Normalize(src)))
}
