// nav/flightplan.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"log/slog"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

// AircraftState is what the leg builders need to know about the aircraft
// they are planning for.
type AircraftState struct {
	Callsign     string
	Position     math.Point2LL
	Heading      float64 // true
	Speed        float64 // knots
	Altitude     float64 // feet
	Perf         *aviation.PerformanceData
	Radius       float64 // meters
	FlightType   string  // parking type: gate, cargo, ga, mil
	AircraftType string
	Airline      string
}

// RunwayClass maps a flight type to the traffic class used for runway
// preferences.
func RunwayClass(fltType string) string {
	switch fltType {
	case aviation.ParkingGate, aviation.ParkingCargo:
		return "com"
	case aviation.ParkingGA:
		return "gen"
	case aviation.ParkingMil:
		return "mil"
	default:
		return "com"
	}
}

// FlightInfo describes the flight a plan is built for.
type FlightInfo struct {
	Departure      *aviation.Airport
	Arrival        *aviation.Airport
	CruiseAltitude float64 // feet
	CruiseSpeed    float64 // knots; zero uses the performance cruise speed
	FirstFlight    bool
}

// FlightPlan is the list of waypoints an AI aircraft still has to fly,
// together with the state the leg builders share between legs.
type FlightPlan struct {
	Callsign  string
	Waypoints []*Waypoint
	Leg       Leg

	// Runways in use at the departure and arrival airports.
	ActiveRunway  string
	ArrivalRunway string

	Gate        *aviation.ParkingAssignment // departure parking
	ArrivalGate *aviation.ParkingAssignment

	// TaxiClearanceRequest is set when the aircraft must ask ground for
	// taxi clearance once pushback completes.
	TaxiClearanceRequest bool
	// PushbackSpeed is the (negative) speed used while reversing.
	PushbackSpeed float64
	// StartNode is the ground network node the next taxi leg starts
	// from, or -1.
	StartNode int
	// TaxiRoute is the route of the current taxi leg, if any.
	TaxiRoute aviation.TaxiRoute

	fired map[Trigger]bool
}

func NewFlightPlan(callsign string) *FlightPlan {
	return &FlightPlan{
		Callsign:  callsign,
		StartNode: -1,
		fired:     make(map[Trigger]bool),
	}
}

func (fp *FlightPlan) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("callsign", fp.Callsign),
		slog.String("leg", fp.Leg.String()),
		slog.Int("waypoints", len(fp.Waypoints)),
		slog.String("runway", fp.ActiveRunway))
}

func (fp *FlightPlan) Len() int {
	return len(fp.Waypoints)
}

func (fp *FlightPlan) Empty() bool {
	return len(fp.Waypoints) == 0
}

// Current returns the waypoint being flown to, or nil.
func (fp *FlightPlan) Current() *Waypoint {
	if len(fp.Waypoints) == 0 {
		return nil
	}
	return fp.Waypoints[0]
}

// Peek returns the waypoint after the current one, or nil.
func (fp *FlightPlan) Peek() *Waypoint {
	if len(fp.Waypoints) < 2 {
		return nil
	}
	return fp.Waypoints[1]
}

// Pop removes and returns the current waypoint. Waypoints are only ever
// consumed from the front.
func (fp *FlightPlan) Pop() *Waypoint {
	if len(fp.Waypoints) == 0 {
		return nil
	}
	wp := fp.Waypoints[0]
	fp.Waypoints[0] = nil
	fp.Waypoints = fp.Waypoints[1:]
	return wp
}

// DropRemaining discards the rest of the current leg.
func (fp *FlightPlan) DropRemaining() {
	fp.Waypoints = nil
}

func (fp *FlightPlan) push(wps ...*Waypoint) {
	fp.Waypoints = append(fp.Waypoints, wps...)
}

func (fp *FlightPlan) last() *Waypoint {
	if len(fp.Waypoints) == 0 {
		return nil
	}
	return fp.Waypoints[len(fp.Waypoints)-1]
}

// Fire records that trigger t has fired during the current leg. It
// returns false if it already had.
func (fp *FlightPlan) Fire(t Trigger) bool {
	if fp.fired[t] {
		return false
	}
	fp.fired[t] = true
	return true
}

// beginLeg resets the per-leg state before a builder appends waypoints.
func (fp *FlightPlan) beginLeg(leg Leg) {
	fp.Leg = leg
	fp.Waypoints = nil
	clear(fp.fired)
}

// Intentions returns the ground network nodes the aircraft will pass, in
// order.
func (fp *FlightPlan) Intentions() []int {
	var nodes []int
	for _, wp := range fp.Waypoints {
		if wp.Node >= 0 {
			nodes = append(nodes, wp.Node)
		}
	}
	return nodes
}

// ReleaseGates drops any parking leases the plan holds.
func (fp *FlightPlan) ReleaseGates() {
	fp.Gate.Release()
	fp.ArrivalGate.Release()
}
