// math/heading.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

// NormalizeHeading maps h to [0,360).
func NormalizeHeading(h float64) float64 {
	h = gomath.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		// -1e-17 + 360 rounds to 360
		h -= 360
	}
	return h
}

// HeadingSignedTurn returns the shortest turn from cur to target in
// degrees; positive is a right turn.
func HeadingSignedTurn(cur, target float64) float64 {
	d := NormalizeHeading(target - cur)
	if d > 180 {
		d -= 360
	}
	return d
}

// HeadingDifference is the size of the shortest turn between a and b,
// in [0,180].
func HeadingDifference(a, b float64) float64 {
	return Abs(HeadingSignedTurn(a, b))
}

func OppositeHeading(h float64) float64 {
	return NormalizeHeading(h + 180)
}
