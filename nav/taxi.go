// nav/taxi.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	gomath "math"
	"strconv"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

// appendTaxiRoute adds one waypoint per route node after the first, with
// arcs at nodes where the route turns by more than minArcTurn degrees.
// The first node is included as well when the aircraft is not already
// on it.
func (fp *FlightPlan) appendTaxiRoute(gn *aviation.GroundNetwork, route aviation.TaxiRoute, from math.Point2LL,
	elevation, speed float64) {
	start := 1
	if n := gn.Node(route.Nodes[0]); math.DistanceM(from, n.Location) > 5 {
		start = 0
	}

	for i := start; i < len(route.Nodes); i++ {
		node := gn.Node(route.Nodes[i])
		seg := -1
		if i > 0 {
			seg = route.Segments[i-1]
		}

		if i > 0 && i+1 < len(route.Nodes) {
			in, out := gn.Segment(route.Segments[i-1]), gn.Segment(route.Segments[i])
			if math.HeadingDifference(in.Heading, out.Heading) > minArcTurn {
				maxTangent := gomath.Min(in.Length, out.Length) / 2
				arc := FilletArc(node.Location, in.Heading, out.Heading, turnRadius, maxTangent)
				for j, p := range arc.Points {
					wp := onGround(fmt.Sprintf("%d-arc%d", node.Index, j), p, elevation, speed)
					wp.Segment = arcSegment(j, len(arc.Points), in.Index, out.Index)
					if j == len(arc.Points)-1 {
						wp.Node = node.Index
					}
					fp.push(wp)
				}
				continue
			}
		}

		wp := onGround(strconv.Itoa(node.Index), node.Location, elevation, speed)
		wp.Segment, wp.Node = seg, node.Index
		fp.push(wp)
	}
}

// Arc points in the first half of a turn belong to the incoming segment.
func arcSegment(j, n, in, out int) int {
	if 2*j < n {
		return in
	}
	return out
}

// CreateTakeoffTaxi builds the RUNWAY_TAXI leg from the end of pushback
// to the runway entry, ending at the "runway-hold" waypoint.
func (fp *FlightPlan) CreateTakeoffTaxi(ac *AircraftState, f FlightInfo) error {
	dep := f.Departure
	if dep == nil || dep.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegRunwayTaxi)

	rwy, err := fp.EnsureActiveRunway(ac, f)
	if err != nil {
		return err
	}
	vTaxi := ac.Perf.VTaxi

	if !dep.HasGroundNetwork() {
		fp.createTaxiFallBack(ac, dep, rwy)
		return nil
	}

	gn := dep.Ground
	entry := gn.RunwayEntryNode(rwy)
	if entry == nil {
		return fmt.Errorf("%s %s: %w", dep.ICAO, rwy.ID, aviation.ErrNoRoute)
	}
	start := gn.Node(fp.StartNode)
	if start == nil {
		start = gn.FindNearestNode(ac.Position, func(n *aviation.TaxiNode) bool { return gn.Parking(n.Index) == nil })
	}
	if start == nil {
		return fmt.Errorf("%s: %w", dep.ICAO, aviation.ErrNoRoute)
	}

	route, err := gn.FindShortestRoute(start.Index, entry.Index)
	if err != nil {
		return err
	}
	fp.appendTaxiRoute(gn, route, ac.Position, dep.Elevation, vTaxi)
	if last := fp.last(); last != nil {
		last.Name = "runway-hold"
	} else {
		wp := onGround("runway-hold", entry.Location, dep.Elevation, vTaxi)
		wp.Node = entry.Index
		fp.push(wp)
	}
	fp.TaxiRoute = route
	fp.StartNode = -1
	return nil
}

// createTaxiFallBack taxis straight from the airport reference point to
// the runway.
func (fp *FlightPlan) createTaxiFallBack(ac *AircraftState, dep *aviation.Airport, rwy *aviation.Runway) {
	vTaxi := ac.Perf.VTaxi
	fp.push(onGround("Airport Center", dep.Location, dep.Elevation, vTaxi))
	fp.push(onGround("runway-hold", rwy.PointOnCenterline(rwy.Displacement), dep.Elevation, vTaxi))
}

// CreateParkingTaxi builds the PARKING_TAXI leg from the runway exit to a
// freshly reserved stand; the last waypoint is "park".
func (fp *FlightPlan) CreateParkingTaxi(ac *AircraftState, f FlightInfo) error {
	arr := f.Arrival
	if arr == nil || arr.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegParkingTaxi)
	vTaxi := ac.Perf.VTaxi

	if !arr.Dynamics.HasGroundController() {
		fp.push(onGround("park", arr.Location, arr.Elevation, vTaxi))
		return nil
	}

	gate, err := arr.Dynamics.GetAvailableParking(ac.Radius, ac.FlightType, ac.AircraftType, ac.Airline)
	if err != nil {
		return err
	}
	gn := arr.Ground
	start := gn.Node(fp.StartNode)
	if start == nil {
		start = gn.FindNearestNode(ac.Position, func(n *aviation.TaxiNode) bool { return gn.Parking(n.Index) == nil })
	}
	if start == nil {
		gate.Release()
		return fmt.Errorf("%s: %w", arr.ICAO, aviation.ErrNoRoute)
	}
	route, err := gn.FindShortestRoute(start.Index, gate.Parking.Index)
	if err != nil {
		gate.Release()
		return err
	}

	fp.ArrivalGate = gate
	fp.appendTaxiRoute(gn, route, ac.Position, arr.Elevation, vTaxi)
	if last := fp.last(); last != nil && last.Node == gate.Parking.Index {
		last.Name = "park"
	} else {
		wp := onGround("park", gate.Parking.Location, arr.Elevation, vTaxi)
		wp.Node = gate.Parking.Index
		fp.push(wp)
	}
	fp.TaxiRoute = route
	fp.StartNode = -1
	return nil
}

// CreateParking builds the final PARKING leg.
func (fp *FlightPlan) CreateParking(ac *AircraftState, f FlightInfo) error {
	elev := 0.
	if f.Arrival != nil {
		elev = f.Arrival.Elevation
	}
	fp.beginLeg(LegParking)
	fp.push(onGround("END-parked", ac.Position, elev, 0))
	return nil
}
