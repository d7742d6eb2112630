package login

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// totpAt computes an RFC 6238 time-based one-time password from a
// base32 seed for the 30-second step containing at, using the standard
// 6-digit / SHA-1 parameters every authenticator app ships with.
//
// No TOTP library is available among the stack this codebase otherwise
// draws from, so this is hand-rolled directly from the RFC using
// crypto/hmac, crypto/sha1, and encoding/base32 - all standard library,
// and narrow enough (one function, one well-specified algorithm) that
// pulling in a dependency for it would not pay for itself.
func totpAt(seed string, at time.Time) (string, error) {
	key, err := decodeSeed(seed)
	if err != nil {
		return "", fmt.Errorf("login: decode totp seed: %w", err)
	}

	const step = 30 * time.Second
	counter := uint64(at.Unix()) / uint64(step.Seconds())

	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	const digits = 6
	code := truncated % pow10(digits)
	return fmt.Sprintf("%0*d", digits, code), nil
}

// CurrentTOTP returns the 6-digit code for seed at the current time.
func CurrentTOTP(seed string) (string, error) {
	return totpAt(seed, time.Now())
}

func decodeSeed(seed string) ([]byte, error) {
	clean := strings.ToUpper(strings.ReplaceAll(seed, " ", ""))
	if pad := len(clean) % 8; pad != 0 {
		clean += strings.Repeat("=", 8-pad)
	}
	return base32.StdEncoding.DecodeString(clean)
}

func pow10(n int) uint32 {
	v := uint32(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
