// atc/record.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"log/slog"
	"slices"
	"time"

	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
)

// AircraftID is the handle of an aircraft in the simulation's arena. The
// user's aircraft is always UserAircraft.
type AircraftID int32

const UserAircraft AircraftID = 0

// Fleet answers whether the aircraft behind a handle is still alive;
// records of dead aircraft are dropped at the end of a controller tick.
type Fleet interface {
	Alive(id AircraftID) bool
}

// PositionReport is what an aircraft tells its controller every tick.
type PositionReport struct {
	ID         AircraftID
	Callsign   string
	Radius     float64 // meters
	Heavy      bool
	Leg        nav.Leg
	Runway     string
	Position   math.Point2LL
	Heading    float64
	Speed      float64 // knots; negative while reversing
	Altitude   float64
	Node       int   // current ground network node, or -1
	Intentions []int // upcoming ground network nodes

	// TaxiClearanceRequest is set on the first report after a pushback
	// that requires the aircraft to call ground.
	TaxiClearanceRequest bool
	// HoldingShort is set once the aircraft has stopped at its runway
	// hold point.
	HoldingShort bool
}

// TrafficRecord is a controller's view of one aircraft.
type TrafficRecord struct {
	ID         AircraftID
	Callsign   string
	Radius     float64
	Heavy      bool
	Leg        nav.Leg
	Runway     string
	Position   math.Point2LL
	Heading    float64
	Speed      float64
	Altitude   float64
	Node       int
	Intentions []int

	State    MessageState
	Priority int

	HoldPosition        bool
	RequestHoldPosition bool
	ResumeTaxi          bool

	// WaitsFor is the aircraft this one is queued behind; it is
	// UserAircraft both when there is no blocker and when the blocker is
	// the user. Waiting distinguishes the two.
	WaitsFor     AircraftID
	Waiting      bool
	WaitingSince time.Time

	// SpeedAdjustment, when non-nil, caps the aircraft's speed in knots.
	SpeedAdjustment *float64

	ResolveCircularWait bool
	ResolveUntil        time.Time
	RerouteRequested    bool

	TaxiClearancePending bool
	HoldingShort         bool
	PushbackApproved     bool
	ClearedForTakeoff    bool
	ClearedToLand        bool

	// state to return to once a hold/resume exchange completes
	resumeState     MessageState
	alerted         bool
	arrivalSwitched bool
}

func newTrafficRecord(r PositionReport) *TrafficRecord {
	rec := &TrafficRecord{ID: r.ID, Node: -1}
	rec.update(r)
	return rec
}

func (t *TrafficRecord) update(r PositionReport) {
	t.Callsign = r.Callsign
	t.Radius = r.Radius
	t.Heavy = r.Heavy
	t.Leg = r.Leg
	t.Runway = r.Runway
	t.Position = r.Position
	t.Heading = r.Heading
	t.Speed = r.Speed
	t.Altitude = r.Altitude
	t.Node = r.Node
	t.Intentions = slices.Clone(r.Intentions)
	t.HoldingShort = r.HoldingShort
	if r.TaxiClearanceRequest {
		t.TaxiClearancePending = true
	}
}

// CanMove reports whether the controller currently lets the aircraft
// move at all.
func (t *TrafficRecord) CanMove() bool {
	return !t.HoldPosition && (t.SpeedAdjustment == nil || *t.SpeedAdjustment > 0)
}

// MaxSpeed returns the speed cap the controller imposes, if any.
func (t *TrafficRecord) MaxSpeed() (float64, bool) {
	if t.HoldPosition {
		return 0, true
	}
	if t.SpeedAdjustment != nil {
		return *t.SpeedAdjustment, true
	}
	return 0, false
}

// TaxiCleared reports whether the aircraft may start taxiing: either it
// never needed a clearance or the clearance has been acknowledged.
func (t *TrafficRecord) TaxiCleared() bool {
	return !t.TaxiClearancePending
}

func (t *TrafficRecord) setSpeedAdjustment(v float64) {
	t.SpeedAdjustment = &v
}

func (t *TrafficRecord) clearWait() {
	t.SpeedAdjustment = nil
	t.WaitsFor = UserAircraft
	t.Waiting = false
	t.alerted = false
}

func (t *TrafficRecord) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("id", int(t.ID)),
		slog.String("callsign", t.Callsign),
		slog.String("leg", t.Leg.String()),
		slog.String("state", t.State.String()),
		slog.Int("priority", t.Priority),
		slog.Float64("speed", t.Speed),
	}
	if t.Waiting {
		attrs = append(attrs, slog.Int("waits_for", int(t.WaitsFor)),
			slog.Time("waiting_since", t.WaitingSince))
	}
	if t.SpeedAdjustment != nil {
		attrs = append(attrs, slog.Float64("speed_adjustment", *t.SpeedAdjustment))
	}
	if t.HoldPosition {
		attrs = append(attrs, slog.Bool("hold", true))
	}
	if t.ResolveCircularWait {
		attrs = append(attrs, slog.Bool("resolve_circular_wait", true))
	}
	return slog.GroupValue(attrs...)
}
