// sim/aircraft.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"log/slog"
	gomath "math"
	"time"

	"github.com/goforj/godump"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/util"
)

const (
	// maxLegFailures consecutive failures to build the next leg kill the
	// aircraft.
	maxLegFailures = 2

	groundReachM = 2   // meters, plus the distance covered in one tick
	minAirLeadM  = 200 // meters
)

// AIAircraft flies one scheduled flight along its flight plan. It is owned
// by the Fleet and referred to elsewhere by its ID.
type AIAircraft struct {
	ID           atc.AircraftID
	Callsign     string
	Registration string
	ModelPath    string
	Livery       string
	Heavy        bool

	// State is what the leg builders see; it is also the aircraft's
	// kinematic state.
	State  nav.AircraftState
	Plan   *nav.FlightPlan
	Flight nav.FlightInfo
	// DepartureTime is when pushback may start at the earliest.
	DepartureTime time.Time

	VerticalSpeed float64 // feet per minute
	Bank          float64

	dep, arr *atc.Facility

	node         int // last ground network node passed, or -1
	holdingShort bool
	requestTaxi  bool
	legFailures  int
	targetKts    float64

	dead        bool
	finished    bool
	deathReason string

	lg *log.Logger
}

// AircraftConfig describes an aircraft to be created.
type AircraftConfig struct {
	Callsign      string
	Registration  string
	ModelPath     string
	Livery        string
	AircraftType  string
	Airline       string
	FlightType    string
	PerfClass     string
	Radius        float64
	Heavy         bool
	Flight        nav.FlightInfo
	DepartureTime time.Time
}

func newAIAircraft(ctx *SimContext, id atc.AircraftID, cfg AircraftConfig) *AIAircraft {
	return &AIAircraft{
		ID:           id,
		Callsign:     cfg.Callsign,
		Registration: cfg.Registration,
		ModelPath:    cfg.ModelPath,
		Livery:       cfg.Livery,
		Heavy:        cfg.Heavy,
		State: nav.AircraftState{
			Callsign:     cfg.Callsign,
			Perf:         ctx.Performance(cfg.PerfClass),
			Radius:       cfg.Radius,
			FlightType:   cfg.FlightType,
			AircraftType: cfg.AircraftType,
			Airline:      cfg.Airline,
		},
		Plan:          nav.NewFlightPlan(cfg.Callsign),
		Flight:        cfg.Flight,
		DepartureTime: cfg.DepartureTime,
		dep:           ctx.Facility(cfg.Flight.Departure),
		arr:           ctx.Facility(cfg.Flight.Arrival),
		node:          -1,
		lg:            ctx.Lg.With(slog.String("callsign", cfg.Callsign)),
	}
}

// startAtGate builds the pushback leg at the departure airport and puts
// the aircraft at the stand it reserved.
func (ac *AIAircraft) startAtGate(ctx *SimContext, now time.Time) error {
	dep := ac.Flight.Departure
	ac.State.Position = dep.Location
	ac.State.Altitude = dep.Elevation
	ac.State.Heading = math.Course(dep.Location, ac.Flight.Arrival.Location)
	ac.State.Speed = 0

	if err := ac.Plan.CreateLeg(nav.LegStartup, &ac.State, ac.Flight); err != nil {
		return err
	}
	if ac.Plan.Gate.IsValid() {
		p := ac.Plan.Gate.Parking
		ac.State.Position = p.Location
		ac.State.Heading = p.Heading
		ac.node = p.Index
	}
	ac.announce(ctx, now)
	return nil
}

// startEnRoute puts the aircraft at p in cruise toward its destination.
func (ac *AIAircraft) startEnRoute(ctx *SimContext, p math.Point2LL, now time.Time) error {
	ac.State.Position = p
	ac.State.Altitude = ac.Flight.CruiseAltitude
	ac.State.Heading = math.Course(p, ac.Flight.Arrival.Location)
	ac.State.Speed = ac.cruiseSpeed()

	if err := ac.Plan.CreateLeg(nav.LegCruise, &ac.State, ac.Flight); err != nil {
		return err
	}
	ac.announce(ctx, now)
	return nil
}

func (ac *AIAircraft) cruiseSpeed() float64 {
	if ac.Flight.CruiseSpeed > 0 {
		return ac.Flight.CruiseSpeed
	}
	return ac.State.Perf.VCruise
}

func (ac *AIAircraft) Dead() bool     { return ac.dead }
func (ac *AIAircraft) Finished() bool { return ac.finished }
func (ac *AIAircraft) DeathReason() string {
	return ac.deathReason
}

func (ac *AIAircraft) Position() math.Point2LL { return ac.State.Position }
func (ac *AIAircraft) Leg() nav.Leg            { return ac.Plan.Leg }

func (ac *AIAircraft) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", int(ac.ID)),
		slog.String("callsign", ac.Callsign),
		slog.String("leg", ac.Plan.Leg.String()),
		slog.String("pos", ac.State.Position.DDString()),
		slog.Float64("alt", ac.State.Altitude),
		slog.Float64("speed", ac.State.Speed),
		slog.Bool("dead", ac.dead))
}

// Update advances the aircraft by dt seconds.
func (ac *AIAircraft) Update(ctx *SimContext, now time.Time, dt float64) {
	if ac.dead {
		return
	}
	if ac.State.Perf == nil || ac.Flight.Departure == nil || ac.Flight.Arrival == nil {
		ac.lg.Error("aircraft missing performance data or airports; skipping", slog.Any("aircraft", ac))
		return
	}

	owner, rec := ctx.Locate(ac.ID, ac.dep, ac.arr)

	if rec != nil && rec.RerouteRequested {
		rec.RerouteRequested = false
		ac.reroute(now)
	}

	if ac.move(now, dt, rec) {
		ac.passWaypoint(ctx, now)
	}
	if ac.dead {
		return
	}

	if ac.Plan.Empty() {
		ac.nextLeg(ctx, owner, now)
		if ac.dead {
			return
		}
	}

	ac.announce(ctx, now)
	ac.publish(ctx)
}

// targetSpeed returns the speed the aircraft should be doing toward wp
// and whether it must stop.
func (ac *AIAircraft) targetSpeed(now time.Time, wp *nav.Waypoint, rec *atc.TrafficRecord) (float64, bool) {
	tgt := wp.Speed
	if ac.Plan.Leg == nav.LegStartup && wp.Trigger() == nav.TriggerPushBack && ac.Plan.PushbackSpeed < 0 {
		tgt = ac.Plan.PushbackSpeed
	}

	switch ac.Plan.Leg {
	case nav.LegStartup:
		if now.Before(ac.DepartureTime) || rec == nil || !rec.PushbackApproved {
			return 0, true
		}
	case nav.LegRunwayTaxi:
		if rec == nil || !rec.TaxiCleared() {
			return 0, true
		}
	}

	if rec != nil {
		if limit, ok := rec.MaxSpeed(); ok && math.Abs(tgt) > limit {
			tgt = math.Sign(tgt) * limit
		}
	}
	return tgt, false
}

// move flies toward the current waypoint and reports whether it was
// reached.
func (ac *AIAircraft) move(now time.Time, dt float64, rec *atc.TrafficRecord) bool {
	wp := ac.Plan.Current()
	if wp == nil {
		return false
	}
	tgt, hold := ac.targetSpeed(now, wp, rec)
	if tgt != ac.targetKts {
		nav.NavLog(ac.Callsign, now, nav.NavLogSpeed, "target %.0f kts (was %.0f)", tgt, ac.targetKts)
		ac.targetKts = tgt
	}

	if wp.Trigger() == nav.TriggerRunwayHold {
		reach := groundReachM + math.KnotsToMps(math.Abs(ac.State.Speed))*dt
		if math.DistanceM(ac.State.Position, wp.Position) <= reach {
			ac.State.Position = wp.Position
			ac.holdingShort = true
			if rec == nil || !rec.ClearedForTakeoff {
				if ac.State.Speed != 0 {
					nav.NavLog(ac.Callsign, now, nav.NavLogHold, "holding short %s", ac.Plan.ActiveRunway)
				}
				ac.State.Speed = 0
				return false
			}
			return true
		}
	}

	if wp.OnGround {
		return ac.moveOnGround(wp, tgt, hold, dt)
	}
	return ac.moveInAir(wp, tgt, dt)
}

func (ac *AIAircraft) moveOnGround(wp *nav.Waypoint, tgt float64, hold bool, dt float64) bool {
	s, perf := &ac.State, ac.State.Perf
	s.Speed = perf.ActualSpeed(s.Speed, tgt, dt, true, hold)
	if hold && math.Abs(s.Speed) < 0.5 {
		s.Speed = 0
	}
	ac.VerticalSpeed, ac.Bank = 0, 0
	s.Altitude = math.Approach(s.Altitude, wp.Altitude, perf.DescentRate/60*dt)

	step := math.KnotsToMps(math.Abs(s.Speed)) * dt
	dist := math.DistanceM(s.Position, wp.Position)
	if dist > 0.01 {
		course := math.Course(s.Position, wp.Position)
		s.Heading = util.Select(s.Speed < 0, math.OppositeHeading(course), course)
		s.Position = math.Offset(s.Position, course, gomath.Min(step, dist))
	}
	return !hold && dist <= groundReachM+step
}

func (ac *AIAircraft) moveInAir(wp *nav.Waypoint, tgt, dt float64) bool {
	s, perf := &ac.State, ac.State.Perf

	course := math.Course(s.Position, wp.Position)
	turn := math.HeadingSignedTurn(s.Heading, course)
	ac.Bank = perf.ActualBankAngle(ac.Bank, math.Clamp(2*turn, -perf.MaxBank, perf.MaxBank), dt)
	s.Heading = perf.ActualHeading(s.Heading, course, gomath.Max(math.Abs(ac.Bank), 1), s.Speed, dt, false)
	s.Speed = perf.ActualSpeed(s.Speed, tgt, dt, false, false)

	dist := math.DistanceM(s.Position, wp.Position)
	v := math.KnotsToMps(s.Speed)
	if v > 1 {
		tgtVS := (wp.Altitude - s.Altitude) / (dist / v / 60)
		ac.VerticalSpeed = perf.ActualVerticalSpeed(ac.VerticalSpeed, tgtVS, dt)
	}
	s.Altitude = perf.ActualAltitude(s.Altitude, wp.Altitude, ac.VerticalSpeed, dt)
	s.Position = math.Offset(s.Position, s.Heading, v*dt)

	// start the turn to the next waypoint one turn radius early
	rate := math.Radians(aviation.TurnRate(perf.MaxBank, s.Speed))
	lead := float64(minAirLeadM)
	if rate > 0 {
		lead = gomath.Max(lead, v/rate)
	}
	dist = math.DistanceM(s.Position, wp.Position)
	if dist <= lead {
		return true
	}
	// passed abeam without reaching it
	return dist < 2*lead && math.HeadingDifference(s.Heading, math.Course(s.Position, wp.Position)) > 90
}

// passWaypoint pops the current waypoint and fires its trigger.
func (ac *AIAircraft) passWaypoint(ctx *SimContext, now time.Time) {
	wp := ac.Plan.Pop()
	if wp == nil {
		return
	}
	if wp.OnGround && wp.Node >= 0 {
		ac.node = wp.Node
	} else if !wp.OnGround {
		ac.node = -1
	}
	nav.NavLog(ac.Callsign, now, nav.NavLogWaypoint, "passed %s", wp.Name)

	t := wp.Trigger()
	if t == nav.TriggerNone || !ac.Plan.Fire(t) {
		return
	}
	nav.NavLog(ac.Callsign, now, nav.NavLogTrigger, "%s at %s", t, wp.Name)
	switch t {
	case nav.TriggerPushBack:
		ac.Plan.Gate.Release()
		ac.requestTaxi = ac.Plan.TaxiClearanceRequest
	case nav.TriggerPark:
		if ac.Plan.Leg == nav.LegParkingTaxi {
			ac.Plan.ArrivalGate.Release()
		}
	case nav.TriggerBeginDescent:
		ac.Plan.DropRemaining()
	case nav.TriggerRunwayHold:
		ac.holdingShort = false
	case nav.TriggerParked:
		ac.finished = true
		ac.die(ctx, "parked")
	}
}

// nextLeg builds the leg after the one just completed and hands the
// aircraft to the controller responsible for it.
func (ac *AIAircraft) nextLeg(ctx *SimContext, owner *atc.Controller, now time.Time) {
	next := ac.Plan.Leg.Next()
	if next == nav.LegNone {
		ac.finished = true
		ac.die(ctx, "flight complete")
		return
	}

	if err := ac.Plan.CreateLeg(next, &ac.State, ac.Flight); err != nil {
		ac.legFailures++
		ac.lg.Warn("unable to create leg", slog.String("leg", next.String()), slog.Any("error", err),
			slog.Int("failures", ac.legFailures))
		if ac.legFailures >= maxLegFailures || errors.Is(err, nav.ErrPlanComplete) {
			ac.die(ctx, fmt.Sprintf("%s: %v", next, err))
		}
		return
	}
	ac.legFailures = 0
	nav.NavLog(ac.Callsign, now, nav.NavLogLeg, "%s", next)
	nav.LogRoute(ac.Callsign, now, ac.Plan.Waypoints)

	if !next.OnGround() {
		ac.node = -1
	}
	if to := ac.controllerFor(ctx, next); owner != nil && to != nil {
		owner.Handover(ac.ID, next, to, now)
	}
}

// controllerFor returns who handles the aircraft on the given leg.
func (ac *AIAircraft) controllerFor(ctx *SimContext, leg nav.Leg) *atc.Controller {
	var fac *atc.Facility
	switch {
	case leg <= nav.LegClimb:
		fac = ac.dep
	case leg >= nav.LegApproach:
		fac = ac.arr
	}
	if fac != nil {
		if c := fac.ControllerFor(leg); c != nil {
			return c
		}
	}
	return ctx.EnRoute
}

// reroute rebuilds the current taxi leg from the last node passed.
func (ac *AIAircraft) reroute(now time.Time) {
	leg := ac.Plan.Leg
	if leg != nav.LegRunwayTaxi && leg != nav.LegParkingTaxi {
		return
	}
	ac.Plan.StartNode = ac.node
	if leg == nav.LegParkingTaxi {
		ac.Plan.ArrivalGate.Release()
		ac.Plan.ArrivalGate = nil
	}
	if err := ac.Plan.CreateLeg(leg, &ac.State, ac.Flight); err != nil {
		ac.lg.Warn("reroute failed", slog.String("leg", leg.String()), slog.Any("error", err))
		return
	}
	ac.lg.Debug("rerouted", slog.String("leg", leg.String()), slog.Int("from", ac.node))
	nav.LogRoute(ac.Callsign, now, ac.Plan.Waypoints)
}

func (ac *AIAircraft) report() atc.PositionReport {
	runway := ac.Plan.ActiveRunway
	if ac.Plan.Leg >= nav.LegCruise {
		runway = ac.Plan.ArrivalRunway
	}
	return atc.PositionReport{
		ID:                   ac.ID,
		Callsign:             ac.Callsign,
		Radius:               ac.State.Radius,
		Heavy:                ac.Heavy,
		Leg:                  ac.Plan.Leg,
		Runway:               runway,
		Position:             ac.State.Position,
		Heading:              ac.State.Heading,
		Speed:                ac.State.Speed,
		Altitude:             ac.State.Altitude,
		Node:                 ac.node,
		Intentions:           ac.Plan.Intentions(),
		TaxiClearanceRequest: ac.requestTaxi,
		HoldingShort:         ac.holdingShort,
	}
}

// announce reports the aircraft's position to whoever controls it,
// checking in with the controller for the current leg if nobody does.
func (ac *AIAircraft) announce(ctx *SimContext, now time.Time) {
	owner, _ := ctx.Locate(ac.ID, ac.dep, ac.arr)
	if owner == nil {
		owner = ac.controllerFor(ctx, ac.Plan.Leg)
	}
	owner.AnnouncePosition(ac.report(), now)
	ac.requestTaxi = false
}

func (ac *AIAircraft) publish(ctx *SimContext) {
	ctx.Props.PublishAIModel(int(ac.ID), props.AIModel{
		Callsign:  ac.Callsign,
		Position:  ac.State.Position,
		Altitude:  ac.State.Altitude,
		Heading:   ac.State.Heading,
		Speed:     ac.State.Speed,
		Leg:       ac.Plan.Leg.String(),
		Model:     ac.ModelPath,
		Livery:    ac.Livery,
		Departure: ac.Flight.Departure.ICAO,
		Arrival:   ac.Flight.Arrival.ICAO,
	})
}

// die removes the aircraft from the world: its controller forgets it, its
// stands are freed and it is no longer published.
func (ac *AIAircraft) die(ctx *SimContext, reason string) {
	if ac.dead {
		return
	}
	if owner, _ := ctx.Locate(ac.ID, ac.dep, ac.arr); owner != nil {
		owner.SignOff(ac.ID)
	}
	ac.Plan.ReleaseGates()
	ctx.Props.RemoveAIModel(int(ac.ID))
	ac.dead, ac.deathReason = true, reason
	ac.lg.Info("aircraft removed", slog.String("reason", reason), slog.Any("aircraft", ac))
}

// DebugString returns a readable dump of the aircraft's state.
func (ac *AIAircraft) DebugString() string {
	type view struct {
		Callsign     string
		Registration string
		Leg          string
		Position     string
		Heading      float64
		Speed        float64
		Altitude     float64
		Node         int
		Waypoints    string
		Runway       string
		HoldingShort bool
		Dead         bool
		DeathReason  string
	}
	return godump.DumpStr(view{
		Callsign:     ac.Callsign,
		Registration: ac.Registration,
		Leg:          ac.Plan.Leg.String(),
		Position:     ac.State.Position.DDString(),
		Heading:      ac.State.Heading,
		Speed:        ac.State.Speed,
		Altitude:     ac.State.Altitude,
		Node:         ac.node,
		Waypoints:    nav.WaypointsString(ac.Plan.Waypoints),
		Runway:       ac.Plan.ActiveRunway,
		HoldingShort: ac.holdingShort,
		Dead:         ac.dead,
		DeathReason:  ac.deathReason,
	})
}

///////////////////////////////////////////////////////////////////////////
// Fleet

// Fleet is the arena of live aircraft. Handles are never reused, so a
// stale ID simply fails to resolve.
type Fleet struct {
	aircraft map[atc.AircraftID]*AIAircraft
	nextID   atc.AircraftID
}

func NewFleet() *Fleet {
	return &Fleet{aircraft: make(map[atc.AircraftID]*AIAircraft), nextID: atc.UserAircraft + 1}
}

func (f *Fleet) add(ctx *SimContext, cfg AircraftConfig) *AIAircraft {
	ac := newAIAircraft(ctx, f.nextID, cfg)
	f.aircraft[ac.ID] = ac
	f.nextID++
	return ac
}

// Get returns the aircraft behind id, dead or alive, until it is reaped.
func (f *Fleet) Get(id atc.AircraftID) *AIAircraft {
	return f.aircraft[id]
}

// Alive implements atc.Fleet.
func (f *Fleet) Alive(id atc.AircraftID) bool {
	if id == atc.UserAircraft {
		return true
	}
	ac, ok := f.aircraft[id]
	return ok && !ac.dead
}

// Len returns the number of aircraft that are not dead.
func (f *Fleet) Len() int {
	n := 0
	for _, ac := range f.aircraft {
		if !ac.dead {
			n++
		}
	}
	return n
}

// Aircraft returns the live aircraft ordered by ID.
func (f *Fleet) Aircraft() []*AIAircraft {
	var acs []*AIAircraft
	for _, id := range util.SortedMapKeys(f.aircraft) {
		if ac := f.aircraft[id]; !ac.dead {
			acs = append(acs, ac)
		}
	}
	return acs
}

// reap drops dead aircraft.
func (f *Fleet) reap() {
	for id, ac := range f.aircraft {
		if ac.dead {
			delete(f.aircraft, id)
		}
	}
}
