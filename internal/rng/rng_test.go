package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformFloatBounds(t *testing.T) {
	s := New()
	for i := 0; i < 2000; i++ {
		v := s.UniformFloat()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestIntInBounds(t *testing.T) {
	s := New()
	for i := 0; i < 1000; i++ {
		v := s.IntIn(5, 10)
		require.GreaterOrEqual(t, v, 5)
		require.Less(t, v, 10)
	}
}

func TestBoolProbabilityExtremes(t *testing.T) {
	s := New()
	require.False(t, s.Bool(0))
	require.True(t, s.Bool(1))
}

func TestGaussianClampPositive(t *testing.T) {
	s := New()
	for i := 0; i < 500; i++ {
		v := s.Gaussian(0, 5, true)
		require.GreaterOrEqual(t, v, 0.0)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	s := New()
	items := []int{1, 2, 3, 4, 5}
	cp := append([]int{}, items...)
	Shuffle(s, items)

	sum := 0
	for _, v := range items {
		sum += v
	}
	expected := 0
	for _, v := range cp {
		expected += v
	}
	require.Equal(t, expected, sum)
	require.Len(t, items, len(cp))
}

func TestMousePathReachesNearTarget(t *testing.T) {
	s := New()
	segs := s.MousePath(Point{0, 0}, Point{400, 300}, MousePathOptions{OvershootProb: 0})
	require.NotEmpty(t, segs)
	last := segs[len(segs)-1]
	require.InDelta(t, 400.0, last.Point.X, 10)
	require.InDelta(t, 300.0, last.Point.Y, 10)
}

func TestScrollPathIsFrontLoaded(t *testing.T) {
	s := New()
	segs := s.ScrollPath(1000)
	require.Len(t, segs, 6)
	// Front-loaded: first segment should move more than the last.
	require.Greater(t, math.Abs(segs[0].Delta), math.Abs(segs[len(segs)-1].Delta))
}

func TestShortTokenEntropyAndDistinct(t *testing.T) {
	a := ShortToken()
	b := ShortToken()
	require.NotEqual(t, a, b)
	require.GreaterOrEqual(t, len(a), 8) // base32 of 8 bytes
}
