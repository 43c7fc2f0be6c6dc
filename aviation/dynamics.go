// aviation/dynamics.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"slices"

	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
)

const DefaultApproachDistanceNM = 12

// Below this wind speed, the wind does not select the runway.
const calmWindKnots = 5

type RunwayAction int

const (
	Takeoff RunwayAction = iota
	Landing
)

func (a RunwayAction) String() string {
	if a == Takeoff {
		return "takeoff"
	}
	return "landing"
}

// Wind is the surface wind; Direction is where it blows from.
type Wind struct {
	Direction float64
	Speed     float64 // knots
}

// AirportDynamics is the mutable per-airport state used by the traffic
// system: parking leases, runway selection and weather.
type AirportDynamics struct {
	// ApproachDistance is in meters.
	ApproachDistance float64
	// PreferredRunways maps a traffic class ("com", "gen", "mil", "ul")
	// to runway identifiers in order of preference.
	PreferredRunways map[string][]string

	airport *Airport
	wind    *Wind
	leases  map[int]*ParkingAssignment
	rand    *rand.Rand
}

func NewAirportDynamics(ap *Airport, r *rand.Rand) *AirportDynamics {
	if r == nil {
		r = rand.New()
	}
	d := &AirportDynamics{
		ApproachDistance: math.NMToMeters(DefaultApproachDistanceNM),
		PreferredRunways: make(map[string][]string),
		airport:          ap,
		leases:           make(map[int]*ParkingAssignment),
		rand:             r,
	}
	ap.Dynamics = d
	return d
}

// HasGroundController reports whether the airport has enough ground
// network data for a ground controller to manage it.
func (d *AirportDynamics) HasGroundController() bool {
	return d.airport.HasGroundNetwork() && d.airport.Ground.HasParkings()
}

func (d *AirportDynamics) SetWind(w *Wind) {
	d.wind = w
}

func (d *AirportDynamics) Wind() *Wind {
	return d.wind
}

func (d *AirportDynamics) IsParkingAvailable(p *Parking) bool {
	_, leased := d.leases[p.Index]
	return !leased
}

// GetAvailableParking leases the smallest free parking that fits the
// aircraft. Parkings explicitly tagged for the airline are preferred over
// untagged ones; among equally good candidates the choice is random.
func (d *AirportDynamics) GetAvailableParking(radius float64, fltType, acType, airline string) (*ParkingAssignment, error) {
	if !d.airport.HasGroundNetwork() {
		return nil, fmt.Errorf("%s: %w", d.airport.ICAO, ErrNoParkingAvailable)
	}

	tagged := func(p *Parking) bool { return slices.Contains(p.Airlines, airline) }
	for _, wantTagged := range []bool{true, false} {
		var cands []*Parking
		best := 0.
		for _, p := range d.airport.Ground.Parkings {
			if !d.IsParkingAvailable(p) || !p.accepts(radius, fltType, acType, airline) {
				continue
			}
			if tagged(p) != wantTagged {
				continue
			}
			if len(cands) == 0 || p.Radius < best {
				cands, best = []*Parking{p}, p.Radius
			} else if p.Radius == best {
				cands = append(cands, p)
			}
		}
		if len(cands) > 0 {
			return d.lease(rand.Pick(d.rand, cands)), nil
		}
	}
	return nil, fmt.Errorf("%s: radius %.1f type %q: %w", d.airport.ICAO, radius, fltType, ErrNoParkingAvailable)
}

// LeaseParking leases a specific parking, failing if it is taken.
func (d *AirportDynamics) LeaseParking(p *Parking) (*ParkingAssignment, error) {
	if !d.IsParkingAvailable(p) {
		return nil, fmt.Errorf("%s: %s: %w", d.airport.ICAO, p.Name, ErrNoParkingAvailable)
	}
	return d.lease(p), nil
}

func (d *AirportDynamics) lease(p *Parking) *ParkingAssignment {
	pa := &ParkingAssignment{Parking: p, dyn: d}
	d.leases[p.Index] = pa
	return pa
}

func (d *AirportDynamics) release(pa *ParkingAssignment) {
	if cur, ok := d.leases[pa.Parking.Index]; ok && cur == pa {
		delete(d.leases, pa.Parking.Index)
	}
}

// ReleaseParking drops whatever lease is held on the parking.
func (d *AirportDynamics) ReleaseParking(p *Parking) {
	if pa, ok := d.leases[p.Index]; ok {
		pa.Release()
	}
}

func (d *AirportDynamics) NumLeased() int {
	return len(d.leases)
}

// ActiveRunway picks the runway for the given traffic class and action.
// A surface wind of at least calmWindKnots selects the runway most
// aligned with it; otherwise the class's preferred list is used, and
// failing that the runway most aligned with hdg.
func (d *AirportDynamics) ActiveRunway(class string, action RunwayAction, hdg float64) (*Runway, error) {
	rwys := d.airport.Runways
	if len(rwys) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", d.airport.ICAO, action, ErrNoRunway)
	}

	mostAligned := func(h float64) *Runway {
		best := rwys[0]
		for _, r := range rwys[1:] {
			db, dr := math.HeadingDifference(best.Heading, h), math.HeadingDifference(r.Heading, h)
			if dr < db || (dr == db && r.ID < best.ID) {
				best = r
			}
		}
		return best
	}

	if d.wind != nil && d.wind.Speed >= calmWindKnots {
		return mostAligned(d.wind.Direction), nil
	}
	for _, id := range d.PreferredRunways[class] {
		if r, err := d.airport.Runway(id); err == nil {
			return r, nil
		}
	}
	return mostAligned(hdg), nil
}
