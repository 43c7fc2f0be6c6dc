// nav/geometry.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	gomath "math"

	"github.com/mmp/aitraffic/math"
)

const (
	// Radius of synthesized ground turns, meters.
	turnRadius = 20
	// Maximum angle between successive arc points, degrees.
	arcStep = 10
	// Ground turns sharper than this get an arc.
	minArcTurn = 30
)

// Arc is a circular fillet joining two straight paths that meet at a
// corner.
type Arc struct {
	Center  math.Point2LL
	Radius  float64
	Tangent float64 // distance from the corner to either tangent point
	Points  []math.Point2LL
}

// FilletArc computes the arc of the given radius tangent to a path
// arriving at corner on heading in and leaving it on heading out. The
// radius is reduced when the tangent points would lie farther than
// maxTangent from the corner. Points run from the entry tangent point to
// the exit one, at most arcStep degrees apart; a 90 degree turn yields
// ten points. A straight path gives the corner alone.
func FilletArc(corner math.Point2LL, in, out, radius, maxTangent float64) Arc {
	theta := math.HeadingDifference(in, out)
	if theta < 0.5 || theta > 179.5 {
		return Arc{Center: corner, Points: []math.Point2LL{corner}}
	}

	half := gomath.Tan(math.Radians(theta / 2))
	if radius*half > maxTangent {
		radius = maxTangent / half
	}
	t := radius * half

	frame := math.MakeLocalFrame(corner)
	t1 := math.Scale2(math.HeadingVector(in), -t)

	// +1 for right turns, -1 for left.
	s := math.Sign(math.HeadingSignedTurn(in, out))
	c := math.Add2(t1, math.Scale2(math.HeadingVector(in+90*s), radius))

	n := int(gomath.Ceil((theta-0.5)/arcStep)) + 1
	if n < 2 {
		n = 2
	}
	arc := Arc{Center: frame.FromLocal(c), Radius: radius, Tangent: t}
	start := in - 90*s
	for i := range n {
		b := start + s*theta*float64(i)/float64(n-1)
		arc.Points = append(arc.Points, frame.FromLocal(math.Add2(c, math.Scale2(math.HeadingVector(b), radius))))
	}
	return arc
}
