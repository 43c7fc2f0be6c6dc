// nav/pushback.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	gomath "math"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

// Farthest a push-forward segment may be from the stand, meters.
const maxPushForwardDistance = 250

// EnsureActiveRunway selects the departure runway if none is set yet.
func (fp *FlightPlan) EnsureActiveRunway(ac *AircraftState, f FlightInfo) (*aviation.Runway, error) {
	dep := f.Departure
	if fp.ActiveRunway != "" {
		if rwy, err := dep.Runway(fp.ActiveRunway); err == nil {
			return rwy, nil
		}
	}
	course := ac.Heading
	if f.Arrival != nil {
		course = math.Course(dep.Location, f.Arrival.Location)
	}
	rwy, err := dep.Dynamics.ActiveRunway(RunwayClass(ac.FlightType), aviation.Takeoff, course)
	if err != nil {
		return nil, err
	}
	fp.ActiveRunway = rwy.ID
	return rwy, nil
}

// CreatePushBack builds the STARTUP leg: reserving a stand and moving off
// it, either by reversing to the stand's pushback point or by pushing
// forward onto the nearest taxiway.
func (fp *FlightPlan) CreatePushBack(ac *AircraftState, f FlightInfo) error {
	dep := f.Departure
	if dep == nil || dep.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}

	fp.beginLeg(LegStartup)
	fp.ActiveRunway = ""
	fp.TaxiClearanceRequest = false
	fp.PushbackSpeed = 0
	fp.StartNode = -1
	fp.TaxiRoute = aviation.TaxiRoute{}

	rwy, err := fp.EnsureActiveRunway(ac, f)
	if err != nil {
		return err
	}

	if !dep.Dynamics.HasGroundController() {
		fp.createPushBackFallBack(ac, dep)
		return nil
	}

	if f.FirstFlight || !fp.Gate.IsValid() {
		fp.Gate.Release()
		gate, err := dep.Dynamics.GetAvailableParking(ac.Radius, ac.FlightType, ac.AircraftType, ac.Airline)
		if err != nil {
			return err
		}
		fp.Gate = gate
	}
	parking := fp.Gate.Parking
	vTaxi := ac.Perf.VTaxi
	gn := dep.Ground

	if parking.HasPushBack {
		route, err := gn.FindShortestRoute(parking.Index, parking.PushBackNode)
		if err != nil {
			fp.Gate.Release()
			return fmt.Errorf("%s pushback: %w", parking.Name, err)
		}

		fp.PushbackSpeed = -vTaxi * 2 / 3
		for i := 1; i < len(route.Nodes); i++ {
			node := gn.Node(route.Nodes[i])
			wp := onGround(fmt.Sprintf("pushback-%d", node.Index), node.Location, dep.Elevation, fp.PushbackSpeed)
			wp.Segment, wp.Node = route.Segments[i-1], node.Index
			fp.push(wp)
		}
		if last := fp.last(); last != nil {
			last.Name = "PushBackPoint"
			last.Speed = vTaxi
		} else {
			// The stand is its own pushback point.
			wp := onGround("PushBackPoint", parking.Location, dep.Elevation, vTaxi)
			wp.Node = parking.Index
			fp.push(wp)
		}
		fp.TaxiClearanceRequest = true
		fp.StartNode = parking.PushBackNode
		fp.TaxiRoute = route
		return nil
	}

	return fp.createPushForward(ac, dep, rwy, parking)
}

// createPushForward leaves a stand without a pushback point: the aircraft
// moves along the stand's reverse heading until it meets a taxiway and
// turns onto it toward whichever end is nearer the runway by taxi
// distance.
func (fp *FlightPlan) createPushForward(ac *AircraftState, dep *aviation.Airport, rwy *aviation.Runway,
	parking *aviation.Parking) error {
	gn := dep.Ground
	vTaxi := ac.Perf.VTaxi
	speed := vTaxi * 2 / 3
	rev := parking.ReverseHeading()

	is, ok := gn.FindIntersection(parking.Location, rev, maxPushForwardDistance)
	if !ok {
		if parking.Type != aviation.ParkingGate {
			fp.Gate.Release()
			return fmt.Errorf("%s: %w", parking.Name, ErrNoPushForwardSegment)
		}
		p := math.Offset(parking.Location, rev, 2*parking.Radius)
		fp.push(onGround("PushBackPoint-pushforward", p, dep.Elevation, speed))
		return nil
	}

	seg := is.Segment
	end := fp.chooseSegmentEnd(gn, rwy, seg)
	out := seg.Heading
	endNode := gn.Node(end)
	if end == seg.Start {
		out = math.OppositeHeading(seg.Heading)
	}

	maxTangent := gomath.Min(is.Distance, math.DistanceM(is.Point, endNode.Location))
	arc := FilletArc(is.Point, rev, out, turnRadius, maxTangent)
	for i, p := range arc.Points {
		wp := onGround(fmt.Sprintf("pushforward%d", i), p, dep.Elevation, speed)
		wp.Segment = seg.Index
		fp.push(wp)
	}
	fp.last().Name = "PushBackPoint-pushforward"
	fp.TaxiClearanceRequest = false
	fp.StartNode = end
	return nil
}

// chooseSegmentEnd returns the end node of seg with the shorter taxi
// route to the runway entry; ties and failures go to the segment's end.
func (fp *FlightPlan) chooseSegmentEnd(gn *aviation.GroundNetwork, rwy *aviation.Runway, seg *aviation.TaxiSegment) int {
	entry := gn.RunwayEntryNode(rwy)
	if entry == nil {
		return seg.End
	}
	dist := func(n int) float64 {
		r, err := gn.FindShortestRoute(n, entry.Index)
		if err != nil {
			return gomath.Inf(1)
		}
		return r.Distance
	}
	if dist(seg.Start) < dist(seg.End) {
		return seg.Start
	}
	return seg.End
}

// createPushBackFallBack is used at airports without a ground network:
// the aircraft starts at the airport reference point and moves off on an
// arbitrary southerly heading.
func (fp *FlightPlan) createPushBackFallBack(ac *AircraftState, dep *aviation.Airport) {
	speed := ac.Perf.VTaxi * 2 / 3
	fp.push(onGround("park", dep.Location, dep.Elevation, speed))
	p := math.Offset(dep.Location, 180, 2.2*ac.Radius)
	fp.push(onGround("PushBackPoint-fallback", p, dep.Elevation, speed))
	fp.TaxiClearanceRequest = false
}
