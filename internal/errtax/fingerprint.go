package errtax

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Stable error fingerprints (spec.md §7, §8 property 10): two renderings of
// the same underlying failure that differ only in timestamps, file paths,
// line numbers, or hex addresses must fingerprint identically so recurrences
// aggregate in logs and the dashboard.

var (
	reTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	rePath      = regexp.MustCompile(`(?:/[\w.\-]+)+\.(?:go|ts|js):\d+`)
	reLineOnly  = regexp.MustCompile(`:\d+(:\d+)?\b`)
	reHexAddr   = regexp.MustCompile(`\b0x[0-9a-fA-F]{4,}\b`)
)

// Normalize strips timestamp, path+line, bare line/column, and hex-address
// substrings from an error message plus optional stack text, leaving only
// the structural content of the failure.
func Normalize(text string) string {
	text = reTimestamp.ReplaceAllString(text, "<ts>")
	text = rePath.ReplaceAllString(text, "<loc>")
	text = reHexAddr.ReplaceAllString(text, "<addr>")
	text = reLineOnly.ReplaceAllString(text, "")
	return text
}

// Fingerprint computes a stable 12-character hex ID from normalised error
// text plus an optional stack trace, usable as a log-aggregation key.
func Fingerprint(message, stack string) string {
	sum := sha256.Sum256([]byte(Normalize(message) + "\n" + Normalize(stack)))
	return hex.EncodeToString(sum[:])[:12]
}
