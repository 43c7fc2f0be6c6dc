// aviation/parking.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"log/slog"
	"slices"

	"github.com/mmp/aitraffic/math"
)

// Parking types, matched against a schedule's flight type.
const (
	ParkingGate  = "gate"
	ParkingCargo = "cargo"
	ParkingGA    = "ga"
	ParkingMil   = "mil"
	ParkingOther = "other"
)

// Parking is a stand; it is also a node of the ground network.
type Parking struct {
	TaxiNode
	Name          string
	Type          string
	AircraftTypes []string // empty: any
	Airlines      []string // empty: any
	Radius        float64  // meters
	Heading       float64  // true heading of a parked aircraft

	// PushBackNode is the node reached by reverse taxi; only meaningful
	// when HasPushBack is set.
	PushBackNode int
	HasPushBack  bool
}

// ReverseHeading is the direction an aircraft leaves the stand.
func (p *Parking) ReverseHeading() float64 {
	return math.OppositeHeading(p.Heading)
}

func (p *Parking) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", p.Name),
		slog.Int("index", p.Index),
		slog.String("type", p.Type),
		slog.Float64("radius", p.Radius))
}

func (p *Parking) accepts(radius float64, fltType, acType, airline string) bool {
	if p.Radius < radius {
		return false
	}
	if fltType != "" && p.Type != fltType {
		return false
	}
	if len(p.AircraftTypes) > 0 && !slices.Contains(p.AircraftTypes, acType) {
		return false
	}
	if len(p.Airlines) > 0 && !slices.Contains(p.Airlines, airline) {
		return false
	}
	return true
}

// ParkingAssignment is an exclusive lease on one parking. The zero value
// holds nothing.
type ParkingAssignment struct {
	Parking *Parking

	dyn      *AirportDynamics
	released bool
}

func (pa *ParkingAssignment) IsValid() bool {
	return pa != nil && pa.Parking != nil && !pa.released
}

// Release returns the parking to the pool; calling it more than once is
// harmless.
func (pa *ParkingAssignment) Release() {
	if !pa.IsValid() {
		return
	}
	pa.released = true
	if pa.dyn != nil {
		pa.dyn.release(pa)
	}
}
