// nav/legs.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"

	"github.com/mmp/aitraffic/aviation"
)

// IsCapacityError reports whether err is due to the airport lacking room:
// no free parking, runway or route.
func IsCapacityError(err error) bool {
	return errors.Is(err, aviation.ErrNoParkingAvailable) || errors.Is(err, aviation.ErrNoRoute) ||
		errors.Is(err, aviation.ErrNoRunway) || errors.Is(err, ErrNoPushForwardSegment)
}

// CreateLeg builds the given leg, replacing whatever remains of the plan.
// When a taxi leg after the first fails for lack of capacity, a straight
// path is used instead so that the aircraft can still leave the airport
// or reach its destination.
func (fp *FlightPlan) CreateLeg(leg Leg, ac *AircraftState, f FlightInfo) error {
	var err error
	switch leg {
	case LegStartup:
		err = fp.CreatePushBack(ac, f)
	case LegRunwayTaxi:
		err = fp.CreateTakeoffTaxi(ac, f)
	case LegTakeoffRoll:
		err = fp.CreateTakeOff(ac, f)
	case LegClimb:
		err = fp.CreateClimb(ac, f)
	case LegCruise:
		err = fp.CreateCruise(ac, f, ac.Position)
	case LegApproach:
		err = fp.CreateDescent(ac, f, ac.Position)
	case LegLandingRoll:
		err = fp.CreateLanding(ac, f)
	case LegParkingTaxi:
		err = fp.CreateParkingTaxi(ac, f)
	case LegParking:
		err = fp.CreateParking(ac, f)
	default:
		return ErrPlanComplete
	}

	if err != nil && leg != LegStartup && IsCapacityError(err) && fp.createDegenerate(leg, ac, f) {
		return nil
	}
	return err
}

func (fp *FlightPlan) createDegenerate(leg Leg, ac *AircraftState, f FlightInfo) bool {
	if ac.Perf == nil {
		return false
	}
	vTaxi := ac.Perf.VTaxi

	switch leg {
	case LegRunwayTaxi:
		dep := f.Departure
		if dep == nil {
			return false
		}
		rwy, err := dep.Runway(fp.ActiveRunway)
		if err != nil {
			return false
		}
		fp.beginLeg(LegRunwayTaxi)
		fp.push(onGround("runway-hold", rwy.PointOnCenterline(rwy.Displacement), dep.Elevation, vTaxi))
		return true

	case LegParkingTaxi:
		arr := f.Arrival
		if arr == nil {
			return false
		}
		fp.beginLeg(LegParkingTaxi)
		fp.push(onGround("park", arr.Location, arr.Elevation, vTaxi))
		return true

	default:
		return false
	}
}
