// nav/waypoint.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmp/aitraffic/math"
)

// Leg is one phase of a flight. Legs are flown in declaration order.
type Leg int

const (
	LegNone Leg = iota
	LegStartup
	LegRunwayTaxi
	LegTakeoffRoll
	LegClimb
	LegCruise
	LegApproach
	LegLandingRoll
	LegParkingTaxi
	LegParking
)

var legNames = [...]string{"NONE", "STARTUP", "RUNWAY_TAXI", "TAKEOFF_ROLL", "CLIMB", "CRUISE",
	"APPROACH", "LANDING_ROLL", "PARKING_TAXI", "PARKING"}

func (l Leg) String() string {
	if l < 0 || int(l) >= len(legNames) {
		return fmt.Sprintf("Leg(%d)", int(l))
	}
	return legNames[l]
}

// Next returns the leg that follows l; LegNone follows LegParking.
func (l Leg) Next() Leg {
	if l >= LegParking || l < LegNone {
		return LegNone
	}
	return l + 1
}

func (l Leg) OnGround() bool {
	switch l {
	case LegStartup, LegRunwayTaxi, LegTakeoffRoll, LegLandingRoll, LegParkingTaxi, LegParking:
		return true
	default:
		return false
	}
}

// Trigger is a side effect fired when a waypoint is reached.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerPushBack
	TriggerPark
	TriggerBeginDescent
	TriggerRunwayHold
	TriggerParked
)

func (t Trigger) String() string {
	return [...]string{"none", "pushback", "park", "BOD", "runway-hold", "parked"}[t]
}

type Waypoint struct {
	Name     string
	Position math.Point2LL
	Altitude float64 // feet
	Speed    float64 // knots; negative when taxiing backward
	OnGround bool

	Segment int // ground network segment index, -1 if none
	Node    int // ground network node reached here, -1 if none

	GearDown  bool
	FlapsDown bool
	Spoilers  bool
}

// Trigger returns the side effect associated with the waypoint's name.
func (wp *Waypoint) Trigger() Trigger {
	switch {
	case strings.HasPrefix(wp.Name, "PushBackPoint"):
		return TriggerPushBack
	case wp.Name == "park":
		return TriggerPark
	case wp.Name == "BOD":
		return TriggerBeginDescent
	case wp.Name == "runway-hold":
		return TriggerRunwayHold
	case wp.Name == "END-parked":
		return TriggerParked
	default:
		return TriggerNone
	}
}

func (wp *Waypoint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", wp.Name),
		slog.String("pos", wp.Position.DDString()),
		slog.Float64("alt", wp.Altitude),
		slog.Float64("speed", wp.Speed),
		slog.Bool("ground", wp.OnGround))
}

func WaypointsString(wps []*Waypoint) string {
	var s []string
	for _, wp := range wps {
		s = append(s, wp.Name)
	}
	return strings.Join(s, " ")
}

func onGround(name string, p math.Point2LL, elevation, speed float64) *Waypoint {
	return &Waypoint{
		Name:     name,
		Position: p,
		Altitude: elevation,
		Speed:    speed,
		OnGround: true,
		Segment:  -1,
		Node:     -1,
		GearDown: true,
	}
}

func inAir(name string, p math.Point2LL, alt, speed float64) *Waypoint {
	return &Waypoint{
		Name:     name,
		Position: p,
		Altitude: alt,
		Speed:    speed,
		Segment:  -1,
		Node:     -1,
	}
}
