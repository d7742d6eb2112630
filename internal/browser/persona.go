package browser

import "github.com/kestrelops/rewardsbot/internal/rng"

// Persona selects which device class a Session impersonates.
type Persona string

const (
	Desktop Persona = "desktop"
	Mobile  Persona = "mobile"
)

// Viewport is the window/screen geometry a Session is built with.
type Viewport struct {
	Width  int
	Height int
	DPR    float64
}

// desktopBase are weighted common 1080p-dominant desktop resolutions.
var desktopBase = []struct {
	w, h   int
	weight float64
}{
	{1920, 1080, 0.55},
	{1366, 768, 0.15},
	{1536, 864, 0.12},
	{1440, 900, 0.10},
	{2560, 1440, 0.08},
}

// mobileBase are weighted device-class viewport bases (portrait CSS px).
var mobileBase = []struct {
	w, h   int
	weight float64
}{
	{390, 844, 0.35},  // iPhone-class
	{412, 915, 0.35},  // Pixel-class
	{360, 800, 0.20},  // budget Android
	{428, 926, 0.10},  // large iPhone-class
}

// ChooseViewport draws a realistic viewport for persona per spec.md
// §4.5's guarantees: a weighted base size and a DPR drawn from the
// persona's plausible set. Desktop widths vary at most ±10px from the
// base and heights are reduced by a 100-120px browser chrome allowance;
// mobile viewports use the device-class base size unchanged.
func ChooseViewport(s *rng.Source, persona Persona) Viewport {
	switch persona {
	case Mobile:
		base := weightedPick(s, mobileBase)
		dpr := 2.0
		if s.Bool(0.5) {
			dpr = 3.0
		}
		return Viewport{Width: base.w, Height: base.h, DPR: dpr}
	default:
		base := weightedPick(s, desktopBase)
		width := base.w + s.IntIn(-10, 11)
		chrome := s.IntIn(100, 121)
		dpr := 1.0
		if s.Bool(0.15) {
			dpr = 1.25
		}
		return Viewport{Width: width, Height: base.h - chrome, DPR: dpr}
	}
}

func weightedPick(s *rng.Source, items []struct {
	w, h   int
	weight float64
}) struct {
	w, h   int
	weight float64
} {
	total := 0.0
	for _, it := range items {
		total += it.weight
	}
	r := s.FloatIn(0, total)
	cum := 0.0
	for _, it := range items {
		cum += it.weight
		if r <= cum {
			return it
		}
	}
	return items[len(items)-1]
}
