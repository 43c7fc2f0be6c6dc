// nav/arrival.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	gomath "math"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
)

const (
	glideSlope       = 3    // degrees
	thresholdHeight  = 50   // feet
	touchdownOffset  = 300  // meters past the threshold
	finalSpacingNM   = 2
	teardropOffsetM  = 5000 // lateral offset of the teardrop entry
	teardropOutbound = 8000 // meters beyond the IAF
)

// EnsureArrivalRunway selects the landing runway if none is set yet,
// based on the course from pos to the airport.
func (fp *FlightPlan) EnsureArrivalRunway(ac *AircraftState, arr *aviation.Airport, pos math.Point2LL) (*aviation.Runway, error) {
	if fp.ArrivalRunway != "" {
		if rwy, err := arr.Runway(fp.ArrivalRunway); err == nil {
			return rwy, nil
		}
	}
	rwy, err := arr.Dynamics.ActiveRunway(RunwayClass(ac.FlightType), aviation.Landing,
		math.Course(pos, arr.Location))
	if err != nil {
		return nil, err
	}
	fp.ArrivalRunway = rwy.ID
	return rwy, nil
}

// glidePathAltitude returns the altitude on the glide path d meters
// before the threshold.
func glidePathAltitude(elevation, d float64) float64 {
	return elevation + thresholdHeight + math.MetersToFeet(d*gomath.Tan(math.Radians(glideSlope)))
}

// CreateCruise builds the CRUISE leg. Far from the destination it ends
// with two begin-of-descent waypoints on the arrival runway's extended
// centerline; close to it they are placed 10km and 15km ahead on the
// current heading and the descent leg sets up the approach from there.
func (fp *FlightPlan) CreateCruise(ac *AircraftState, f FlightInfo, current math.Point2LL) error {
	arr := f.Arrival
	if arr == nil || arr.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegCruise)

	rwy, err := fp.EnsureArrivalRunway(ac, arr, current)
	if err != nil {
		return err
	}
	speed := orDefault(f.CruiseSpeed, ac.Perf.VCruise)
	alt := f.CruiseAltitude
	approach := arr.Dynamics.ApproachDistance

	beginDescent := rwy.PointOnCenterline(-3 * approach)
	secondaryDescent := rwy.PointOnCenterline(0)

	if math.DistanceM(current, secondaryDescent) > 4*approach {
		fp.push(inAir("BOD", beginDescent, alt, speed), inAir("BOD2", secondaryDescent, alt, speed))
	} else {
		fp.push(inAir("BOD", math.Offset(current, ac.Heading, 10000), alt, speed),
			inAir("BOD2", math.Offset(current, ac.Heading, 15000), alt, speed))
	}
	return nil
}

// CreateDescent builds the APPROACH leg from the aircraft's position:
// an optional teardrop when arriving from the far side of the runway,
// the initial approach fix, final approach points every 2nm on a 3
// degree glide path, and the threshold.
func (fp *FlightPlan) CreateDescent(ac *AircraftState, f FlightInfo, current math.Point2LL) error {
	arr := f.Arrival
	if arr == nil || arr.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegApproach)

	rwy, err := fp.EnsureArrivalRunway(ac, arr, current)
	if err != nil {
		return err
	}
	perf := ac.Perf
	approach := arr.Dynamics.ApproachDistance
	elev := arr.Elevation
	iafAlt := glidePathAltitude(elev, approach)
	iaf := rwy.PointOnCenterline(-approach)

	inbound := math.Course(current, iaf)
	if math.HeadingDifference(inbound, rwy.Heading) > 90 {
		// Pass abeam the runway, then turn back onto the centerline.
		side := 90.
		if math.HeadingSignedTurn(rwy.Heading, math.Course(iaf, current)) < 0 {
			side = -90
		}
		out := rwy.PointOnCenterline(-(approach + teardropOutbound))
		td1 := math.Offset(out, rwy.Heading+side, teardropOffsetM)
		alt := gomath.Max(gomath.Min(ac.Altitude, iafAlt+3000), iafAlt)
		fp.push(inAir("teardrop1", td1, alt, perf.VDescent), inAir("teardrop2", out, iafAlt+1000, perf.VApproach))
	}

	iwp := inAir("IAF", iaf, iafAlt, perf.VApproach)
	iwp.FlapsDown = true
	fp.push(iwp)

	n := 1
	for d := approach - math.NMToMeters(finalSpacingNM); d > 1; d -= math.NMToMeters(finalSpacingNM) {
		frac := d / approach
		wp := inAir(fmt.Sprintf("final%d", n), rwy.PointOnCenterline(-d), glidePathAltitude(elev, d),
			math.Lerp(frac, perf.VTouchdown, perf.VApproach))
		wp.FlapsDown, wp.GearDown = true, true
		fp.push(wp)
		n++
	}

	thr := inAir("threshold", rwy.PointOnCenterline(0), elev+thresholdHeight, perf.VTouchdown)
	thr.FlapsDown, thr.GearDown = true, true
	fp.push(thr)
	return nil
}

// CreateLanding builds the LANDING_ROLL leg: touchdown, rollout, and the
// runway exit nearest the end of the roll.
func (fp *FlightPlan) CreateLanding(ac *AircraftState, f FlightInfo) error {
	arr := f.Arrival
	if arr == nil || arr.Dynamics == nil {
		return ErrNoAirport
	}
	if ac.Perf == nil {
		return ErrNoPerformanceData
	}
	fp.beginLeg(LegLandingRoll)

	rwy, err := fp.EnsureArrivalRunway(ac, arr, ac.Position)
	if err != nil {
		return err
	}
	perf := ac.Perf
	elev := arr.Elevation

	roll := touchdownOffset + perf.LandingRollDistance()
	if rwy.Length > 0 {
		roll = gomath.Min(roll, rwy.Length-100)
	}

	td := onGround("touchdown", rwy.PointOnCenterline(touchdownOffset), elev, perf.VTouchdown)
	td.Spoilers, td.FlapsDown = true, true
	fp.push(td, onGround("rollout", rwy.PointOnCenterline(roll), elev, 2*perf.VTaxi))

	fp.StartNode = -1
	if arr.HasGroundNetwork() {
		if exit := arr.Ground.RunwayExitNode(rwy, roll); exit != nil {
			wp := onGround("runway-exit", exit.Location, elev, perf.VTaxi)
			wp.Node = exit.Index
			fp.push(wp)
			fp.StartNode = exit.Index
			return nil
		}
	}
	fp.push(onGround("runway-exit", rwy.PointOnCenterline(roll+100), elev, perf.VTaxi))
	return nil
}
