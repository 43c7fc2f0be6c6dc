// nav/departure.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	gomath "math"

	"github.com/mmp/aitraffic/math"
)

// CreateTakeOff builds the TAKEOFF_ROLL leg: accelerate from the lineup
// point, rotate, and climb out to 1000ft above the field.
func (fp *FlightPlan) CreateTakeOff(ac *AircraftState, f FlightInfo) error {
	dep := f.Departure
	if dep == nil || dep.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegTakeoffRoll)

	rwy, err := fp.EnsureActiveRunway(ac, f)
	if err != nil {
		return err
	}
	perf := ac.Perf
	elev := dep.Elevation

	roll := rwy.Displacement + perf.TakeoffRollDistance()
	if rwy.Length > 0 {
		roll = gomath.Min(roll, 0.9*rwy.Length)
	}

	accel := onGround("accel", rwy.PointOnCenterline(rwy.Displacement), elev, perf.VRotate)
	rotate := onGround("rotate", rwy.PointOnCenterline(roll), elev, perf.VTakeoff)
	soc := inAir("SOC", rwy.PointOnCenterline(roll+3000), elev+1000, perf.VClimb)
	soc.FlapsDown = true
	fp.push(accel, rotate, soc)
	return nil
}

// CreateClimb builds the CLIMB leg: two climb waypoints along the runway
// heading, then the top of climb on the course to the destination.
func (fp *FlightPlan) CreateClimb(ac *AircraftState, f FlightInfo) error {
	dep := f.Departure
	if dep == nil || dep.Dynamics == nil || f.Arrival == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegClimb)

	rwy, err := fp.EnsureActiveRunway(ac, f)
	if err != nil {
		return err
	}
	perf := ac.Perf
	cruise := f.CruiseAltitude
	vCruise := orDefault(f.CruiseSpeed, perf.VCruise)

	alt1 := gomath.Min(dep.Elevation+5000, cruise)
	alt2 := gomath.Min(dep.Elevation+8000, cruise)
	p1 := math.Offset(rwy.End(), rwy.Heading, 10000)
	p2 := math.Offset(rwy.End(), rwy.Heading, 20000)
	fp.push(inAir("climb1", p1, alt1, perf.VClimb), inAir("climb2", p2, alt2, perf.VClimb))

	// Distance covered while climbing the rest of the way, at least 10km.
	minutes := gomath.Max(cruise-alt2, 0) / perf.ClimbRate
	dist := gomath.Max(math.NMToMeters(perf.VClimb*minutes/60), 10000)
	course := math.Course(p2, f.Arrival.Location)
	fp.push(inAir("TOC", math.Offset(p2, course, dist), cruise, vCruise))
	return nil
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
