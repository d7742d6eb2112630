package browser

import "fmt"

// Fingerprint is the internally-consistent identity surface a Session
// presents to the page: user-agent, client hints, locale, and
// timezone, all derived from the same persona/version pair so no
// signal contradicts another (spec.md §4.5 guarantee (b)).
type Fingerprint struct {
	UserAgent    string
	ClientHints  map[string]string
	Locale       string
	Timezone     string
	HardwareConcurrency int
	DeviceMemory        int
}

// BuildFingerprint derives a Fingerprint for persona, pinned to
// edgeVersion, with locale/timezone taken from configuration.
func BuildFingerprint(persona Persona, edgeVersion, locale, timezone string, hwConcurrency, deviceMemory int) Fingerprint {
	major := majorVersion(edgeVersion)

	var ua string
	platform := `"Windows"`
	mobile := "?0"
	switch persona {
	case Mobile:
		ua = fmt.Sprintf("Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) "+
			"Chrome/%s Mobile Safari/537.36 EdgA/%s", edgeVersion, edgeVersion)
		platform = `"Android"`
		mobile = "?1"
	default:
		ua = fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) "+
			"Chrome/%s Safari/537.36 Edg/%s", edgeVersion, edgeVersion)
	}

	hints := map[string]string{
		"sec-ch-ua": fmt.Sprintf(`"Not/A)Brand";v="8", "Chromium";v="%s", "Microsoft Edge";v="%s"`, major, major),
		"sec-ch-ua-mobile":   mobile,
		"sec-ch-ua-platform": platform,
	}

	return Fingerprint{
		UserAgent:           ua,
		ClientHints:         hints,
		Locale:              locale,
		Timezone:            timezone,
		HardwareConcurrency: nearestOf(hwConcurrency, []int{4, 6, 8}),
		DeviceMemory:        nearestOf(deviceMemory, []int{4, 8, 16}),
	}
}

func majorVersion(version string) string {
	for i, r := range version {
		if r == '.' {
			return version[:i]
		}
	}
	return version
}

func nearestOf(v int, candidates []int) int {
	best := candidates[0]
	bestDist := abs(v - best)
	for _, c := range candidates[1:] {
		if d := abs(v - c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
