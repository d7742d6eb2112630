package rng

import "math"

// Point is a 2D pixel coordinate.
type Point struct {
	X, Y float64
}

// MouseSegment is one leg of a synthesized mouse movement: the point to
// move to, and how long that leg should take.
type MouseSegment struct {
	Point    Point
	Duration float64 // milliseconds
}

// MousePathOptions tunes MousePath's humanization.
type MousePathOptions struct {
	Steps           int     // control points sampled along the curve; 0 picks a sane default
	BaseDurationMS  float64 // total nominal duration before jitter
	OvershootProb   float64 // chance of an overshoot-and-correction for moves over 50px; 0 uses the default 0.3
	MicroPauseProb  float64 // chance of a mid-movement micro-pause; 0 uses the default 0.05
}

// MousePath synthesizes a humanized cursor path from start to end: a cubic
// Bézier with randomized control points, ease-in-out timing, per-point
// jitter, an occasional overshoot-and-correction on long moves, and an
// occasional mid-movement micro-pause (spec.md §4.4).
func (s *Source) MousePath(start, end Point, opts MousePathOptions) []MouseSegment {
	if opts.Steps <= 0 {
		opts.Steps = 24
	}
	if opts.BaseDurationMS <= 0 {
		opts.BaseDurationMS = 350
	}

	dist := math.Hypot(end.X-start.X, end.Y-start.Y)

	// Control points bow the path away from the straight line, like a hand
	// correcting its trajectory mid-swing.
	bow := s.FloatIn(-0.25, 0.25) * dist
	perpX, perpY := -( end.Y - start.Y), end.X - start.X
	norm := math.Hypot(perpX, perpY)
	if norm == 0 {
		norm = 1
	}
	perpX, perpY = perpX/norm*bow, perpY/norm*bow

	c1 := Point{start.X + (end.X-start.X)*0.33 + perpX, start.Y + (end.Y-start.Y)*0.33 + perpY}
	c2 := Point{start.X + (end.X-start.X)*0.66 + perpX*0.5, start.Y + (end.Y-start.Y)*0.66 + perpY*0.5}

	target := end
	overshot := dist > 50 && s.Bool(orDefault(opts.OvershootProb, 0.3))
	if overshot {
		overX := end.X + (end.X-start.X)*s.FloatIn(0.03, 0.08)
		overY := end.Y + (end.Y-start.Y)*s.FloatIn(0.03, 0.08)
		target = Point{overX, overY}
	}

	segments := make([]MouseSegment, 0, opts.Steps+1)
	for i := 1; i <= opts.Steps; i++ {
		t := float64(i) / float64(opts.Steps)
		eased := easeInOutCubic(t)
		p := bezierCubic(start, c1, c2, target, eased)
		p.X += s.Gaussian(0, 0.6, false)
		p.Y += s.Gaussian(0, 0.6, false)

		segDuration := (opts.BaseDurationMS / float64(opts.Steps)) * s.FloatIn(0.7, 1.3)
		segments = append(segments, MouseSegment{Point: p, Duration: segDuration})
	}

	if overshot {
		correctionSteps := maxInt(2, opts.Steps/6)
		for i := 1; i <= correctionSteps; i++ {
			t := float64(i) / float64(correctionSteps)
			p := Point{
				X: target.X + (end.X-target.X)*easeInOutCubic(t),
				Y: target.Y + (end.Y-target.Y)*easeInOutCubic(t),
			}
			segments = append(segments, MouseSegment{Point: p, Duration: s.FloatIn(30, 90)})
		}
	}

	if len(segments) > 2 && s.Bool(orDefault(opts.MicroPauseProb, 0.05)) {
		mid := len(segments) / 2
		segments[mid].Duration += s.FloatIn(80, 220)
	}

	return segments
}

// ScrollSegment is one leg of a synthesized scroll gesture.
type ScrollSegment struct {
	Delta    float64
	Duration float64 // milliseconds
}

// ScrollPath synthesizes a front-loaded, decaying-inertia scroll of about
// delta pixels (spec.md §4.4), split across a handful of segments whose
// magnitude shrinks geometrically. Each segment's share is then scaled by
// a random 0.9-1.1 factor, so the segments sum to within about 10% of
// delta rather than exactly delta.
func (s *Source) ScrollPath(delta float64) []ScrollSegment {
	const segs = 6
	decay := 0.6
	weight := 0.0
	weights := make([]float64, segs)
	for i := 0; i < segs; i++ {
		w := math.Pow(decay, float64(i))
		weights[i] = w
		weight += w
	}

	out := make([]ScrollSegment, segs)
	remaining := delta
	for i := 0; i < segs; i++ {
		portion := delta * (weights[i] / weight)
		if i == segs-1 {
			portion = remaining
		}
		remaining -= portion
		out[i] = ScrollSegment{
			Delta:    portion * s.FloatIn(0.9, 1.1),
			Duration: s.FloatIn(20, 60) * (1 + float64(i)*0.15),
		}
	}
	return out
}

func bezierCubic(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	x := u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X
	y := u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y
	return Point{X: x, Y: y}
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := (2*t - 2)
	return 0.5*f*f*f + 1
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
