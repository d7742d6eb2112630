package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func errInvalidTime(s string) error {
	return fmt.Errorf("orchestrator: invalid schedule time %q, want HH:MM", s)
}

// parseTwoInts parses "HH:MM" into its two colon-separated integers.
func parseTwoInts(s string, a, b *int) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, errInvalidTime(s)
	}
	hh, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hh < 0 || hh > 23 {
		return 0, errInvalidTime(s)
	}
	mm, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || mm < 0 || mm > 59 {
		return 0, errInvalidTime(s)
	}
	*a, *b = hh, mm
	return 2, nil
}

func cronField(n int) string { return strconv.Itoa(n) }

func sleepMinutes(m float64) {
	time.Sleep(time.Duration(m * float64(time.Minute)))
}
