// atc/radar.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

const (
	// RadarLookAhead is how far along its path an aircraft looks for
	// traffic in its way.
	RadarLookAhead = 200 // meters
	// pushbackClearance is added to twice the radius of an aircraft at
	// the gate to get the area that must be clear before it may push.
	pushbackClearance = 40 // meters
	// movingSpeed separates moving traffic from parked traffic.
	movingSpeed = 0.5 // knots
)

// AirportGroundRadar finds the traffic in an aircraft's way on one
// airport's ground network.
type AirportGroundRadar struct {
	gn *aviation.GroundNetwork

	user       TrafficRecord
	userActive bool
}

func NewAirportGroundRadar(gn *aviation.GroundNetwork) *AirportGroundRadar {
	return &AirportGroundRadar{gn: gn}
}

// SetUserAircraft records the user's aircraft so that AI traffic gives
// way to it. Passing onGround=false removes it from the radar.
func (r *AirportGroundRadar) SetUserAircraft(p math.Point2LL, heading, speed, radius float64, onGround bool) {
	r.userActive = onGround
	r.user = TrafficRecord{
		ID:       UserAircraft,
		Callsign: "user",
		Position: p,
		Heading:  heading,
		Speed:    speed,
		Radius:   radius,
		Node:     -1,
	}
}

// path returns the projected path of rec in the local frame centered on
// rec: its position followed by its upcoming nodes, cut off at
// RadarLookAhead. Without intentions the path is a straight line along
// the direction of travel.
func (r *AirportGroundRadar) path(rec *TrafficRecord, f math.LocalFrame) [][2]float64 {
	pts := [][2]float64{{0, 0}}
	length := 0.0

	if r.gn != nil {
		for _, idx := range rec.Intentions {
			n := r.gn.Node(idx)
			if n == nil {
				continue
			}
			p := f.ToLocal(n.Location)
			d := math.Length2(math.Sub2(p, pts[len(pts)-1]))
			if d < 1 {
				continue
			}
			if length+d >= RadarLookAhead {
				dir := math.Scale2(math.Sub2(p, pts[len(pts)-1]), (RadarLookAhead-length)/d)
				return append(pts, math.Add2(pts[len(pts)-1], dir))
			}
			pts = append(pts, p)
			length += d
		}
	}

	if len(pts) == 1 {
		hdg := rec.Heading
		if rec.Speed < 0 {
			hdg = math.OppositeHeading(hdg)
		}
		pts = append(pts, math.Scale2(math.HeadingVector(hdg), RadarLookAhead))
	}
	return pts
}

// Blocker returns the nearest target ahead of rec along its projected
// path whose footprint overlaps the path, along with the distance along
// the path to it.
func (r *AirportGroundRadar) Blocker(rec *TrafficRecord, targets []*TrafficRecord) (*TrafficRecord, float64) {
	f := math.MakeLocalFrame(rec.Position)
	pts := r.path(rec, f)

	var best *TrafficRecord
	bestDist := 0.0
	check := func(tgt *TrafficRecord) {
		if tgt.ID == rec.ID || !tgt.Leg.OnGround() && tgt.ID != UserAircraft {
			return
		}
		p := f.ToLocal(tgt.Position)
		tol := rec.Radius + tgt.Radius
		start := 0.0
		for i := 1; i < len(pts); i++ {
			lateral, along := math.PointSegmentDistance(p, pts[i-1], pts[i])
			seglen := math.Length2(math.Sub2(pts[i], pts[i-1]))
			if i == 1 && along <= 0 {
				// level with or behind us
				start += seglen
				continue
			}
			if lateral <= tol {
				if d := start + along; best == nil || d < bestDist {
					best, bestDist = tgt, d
				}
				return
			}
			start += seglen
		}
	}

	for _, tgt := range targets {
		check(tgt)
	}
	if r.userActive {
		check(&r.user)
	}
	return best, bestDist
}

// PushbackBlocked reports whether some moving aircraft is too close to
// rec, which is still at its parking, for it to push back.
func (r *AirportGroundRadar) PushbackBlocked(rec *TrafficRecord, targets []*TrafficRecord) bool {
	limit := 2*rec.Radius + pushbackClearance
	blocks := func(tgt *TrafficRecord) bool {
		return tgt.ID != rec.ID && math.Abs(tgt.Speed) > movingSpeed &&
			math.DistanceM(rec.Position, tgt.Position) < limit
	}
	for _, tgt := range targets {
		if tgt.Leg.OnGround() && blocks(tgt) {
			return true
		}
	}
	return r.userActive && blocks(&r.user)
}
