// Package utils contains angle and arc-length helpers shared by the planner packages.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// AngleDiffRad returns the absolute, closest difference between two angles in radians.
// The result is in [0, pi] and the arguments are commutative.
func AngleDiffRad(a1, a2 float64) float64 {
	diff := math.Mod(math.Abs(a1-a2), 2*math.Pi)
	return math.Min(diff, 2*math.Pi-diff)
}

// WrapLength maps a cyclic length into [0, period).
func WrapLength(s, period float64) float64 {
	if period <= 0 {
		return s
	}
	s = math.Mod(s, period)
	if s < 0 {
		s += period
	}
	return s
}

// WrapDelta returns the shortest signed difference a-b on a cycle of the given period, in
// (-period/2, period/2]. A non-positive period returns the plain difference.
func WrapDelta(a, b, period float64) float64 {
	delta := a - b
	if period <= 0 {
		return delta
	}
	delta = WrapLength(delta, period)
	if delta > period/2 {
		delta -= period
	}
	return delta
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
