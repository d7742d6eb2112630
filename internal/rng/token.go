package rng

import (
	"crypto/rand"
	"encoding/base32"
)

// ShortToken returns a short opaque identifier with at least 32 bits of
// entropy, generated directly from crypto/rand.
//
// spec.md §9 records that the source's secure-random wrapper sometimes
// produced such a token via `(secureRand()).toString(36)`, a low-entropy,
// prefix-only string derived from a float. This implementation takes the
// spec's resolution: draw the bytes directly from the crypto source
// instead of stringifying a float.
func ShortToken() string {
	var b [8]byte // 64 bits, well above the required 32-bit floor
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand practically never fails; degrade to an all-zero
		// token rather than panic inside a long-running orchestrator.
		return "00000000"
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:])
}
