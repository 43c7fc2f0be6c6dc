// math/core.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

const (
	MetersPerNM      = 1852.0
	MetersPerFoot    = 0.3048
	MpsPerKnot       = 1852.0 / 3600.0
	FeetPerMinPerMps = 196.850394
	EarthRadiusM     = 6371000.0
)

func NMToMeters(nm float64) float64 { return nm * MetersPerNM }
func MetersToNM(m float64) float64 { return m / MetersPerNM }
func FeetToMeters(ft float64) float64 { return ft * MetersPerFoot }
func MetersToFeet(m float64) float64 { return m / MetersPerFoot }
func KnotsToMps(kt float64) float64 { return kt * MpsPerKnot }
func MpsToKnots(mps float64) float64 { return mps / MpsPerKnot }

// Degrees converts an angle expressed in radians to degrees
func Degrees(r float64) float64 {
	return r * 180 / gomath.Pi
}

// Radians converts an angle expressed in degrees to radians
func Radians(d float64) float64 {
	return d / 180 * gomath.Pi
}

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

func Sign[V constraints.Signed | constraints.Float](v V) V {
	if v > 0 {
		return 1
	} else if v < 0 {
		return -1
	}
	return 0
}

func Sqr[V constraints.Integer | constraints.Float](v V) V { return v * v }

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

// Lerp linearly interpolates between a and b; x=0 gives a.
func Lerp(x, a, b float64) float64 {
	return (1-x)*a + x*b
}

// Approach moves cur toward target by at most maxStep, never overshooting.
func Approach(cur, target, maxStep float64) float64 {
	if maxStep <= 0 {
		return cur
	}
	if d := target - cur; d > maxStep {
		return cur + maxStep
	} else if d < -maxStep {
		return cur - maxStep
	}
	return target
}
