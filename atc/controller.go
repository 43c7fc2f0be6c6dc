// atc/controller.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"log/slog"
	"slices"
	"time"

	"github.com/brunoga/deep"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
)

const (
	// MaxWait is how long an aircraft may wait on one blocker before it
	// is reported.
	MaxWait = 6000 * time.Second
	// ResumeDelay is the minimum time after it started waiting before a
	// held or slowed aircraft gets its normal speed back.
	ResumeDelay = 20 * time.Second
	// CircularWaitGrace is how long an aircraft picked to break a
	// circular wait ignores whatever blocks it.
	CircularWaitGrace = 30 * time.Second
	// SegmentReservation is how far ahead a taxiing aircraft reserves
	// the segment it is on.
	SegmentReservation = 30 * time.Second

	stopMargin      = 20 // meters kept clear behind a blocker
	crawlSpeed      = 2  // knots; slower adjustments become a full stop
	nodeApproachDis = 30 // meters
)

type Kind int

const (
	KindStartup Kind = iota
	KindGround
	KindTower
	KindApproach
	KindEnRoute
)

func (k Kind) String() string {
	return [...]string{"Startup", "Ground", "Tower", "Approach", "EnRoute"}[k]
}

// Controller tracks the aircraft on one frequency. What it does each tick
// depends on its Kind.
type Controller struct {
	Kind Kind
	Name string

	facility *Facility // nil for en-route
	traffic  []*TrafficRecord

	lastTransmission time.Time
	available        bool

	events *EventStream
	lg     *log.Logger
}

func newController(kind Kind, name string, fac *Facility, es *EventStream, lg *log.Logger) *Controller {
	return &Controller{
		Kind:     kind,
		Name:     name,
		facility: fac,
		events:   es,
		lg:       lg.With(slog.String("controller", name)),
	}
}

// NewEnRouteController returns the controller that holds aircraft between
// airports.
func NewEnRouteController(es *EventStream, lg *log.Logger) *Controller {
	return newController(KindEnRoute, "Center", nil, es, lg)
}

func (c *Controller) facilityName() string {
	if c.facility != nil && c.facility.Airport != nil {
		return c.facility.Airport.ICAO
	}
	return c.Name
}

// Facility returns the airport facility c belongs to; it is nil for the
// en-route controller.
func (c *Controller) Facility() *Facility {
	return c.facility
}

func (c *Controller) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", c.Name),
		slog.String("kind", c.Kind.String()),
		slog.Int("traffic", len(c.traffic)),
		slog.Time("last_transmission", c.lastTransmission))
}

func (c *Controller) Len() int {
	return len(c.traffic)
}

func (c *Controller) Lookup(id AircraftID) *TrafficRecord {
	for _, rec := range c.traffic {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// Traffic returns the records in processing order.
func (c *Controller) Traffic() []*TrafficRecord {
	return slices.Clone(c.traffic)
}

// Owner returns the controller holding id: c itself or, failing that,
// another controller of the same facility.
func (c *Controller) Owner(id AircraftID) *Controller {
	if c.Lookup(id) != nil {
		return c
	}
	if c.facility != nil {
		for _, fc := range c.facility.controllers() {
			if fc.Lookup(id) != nil {
				return fc
			}
		}
	}
	return nil
}

func (c *Controller) insert(rec *TrafficRecord) {
	if rec.Leg == nav.LegRunwayTaxi {
		c.traffic = slices.Insert(c.traffic, 0, rec)
	} else {
		c.traffic = append(c.traffic, rec)
	}
}

func (c *Controller) remove(id AircraftID) *TrafficRecord {
	for i, rec := range c.traffic {
		if rec.ID == id {
			c.traffic = slices.Delete(c.traffic, i, i+1)
			return rec
		}
	}
	return nil
}

// AnnouncePosition inserts or updates the record for the reporting
// aircraft and returns it.
func (c *Controller) AnnouncePosition(r PositionReport, now time.Time) *TrafficRecord {
	if rec := c.Lookup(r.ID); rec != nil {
		rec.update(r)
		return rec
	}

	rec := newTrafficRecord(r)
	c.insert(rec)
	c.lg.Debug("new traffic", slog.Any("record", rec))
	return rec
}

// SignOff drops the record of id.
func (c *Controller) SignOff(id AircraftID) {
	if rec := c.remove(id); rec != nil {
		c.forget(id)
		c.events.Post(Event{Type: SignOffEvent, Callsign: rec.Callsign, AircraftID: id, FromController: c.Name})
	}
}

// forget clears whatever per-airport state id holds.
func (c *Controller) forget(id AircraftID) {
	if c.facility == nil {
		return
	}
	c.facility.RunwayQueues.RemoveAll(int(id))
	if gn := c.facility.ground(); gn != nil {
		gn.Unblock(int(id))
	}
}

// Handover moves the record of id to the controller to, which handles
// the aircraft from leg on. Handing over to c itself only updates the
// leg. It returns false if c does not hold id.
func (c *Controller) Handover(id AircraftID, leg nav.Leg, to *Controller, now time.Time) bool {
	if to == c {
		if rec := c.Lookup(id); rec != nil {
			rec.Leg = leg
			return true
		}
		return false
	}

	rec := c.remove(id)
	if rec == nil {
		return false
	}

	if leg == nav.LegParkingTaxi {
		c.forget(id)
	} else if c.facility != nil && (to == nil || to.facility != c.facility) {
		// leaving the airport
		c.forget(id)
	}

	rec.Leg = leg
	rec.State = StateNormal
	rec.Priority = 0
	rec.clearWait()
	rec.HoldPosition, rec.RequestHoldPosition, rec.ResumeTaxi = false, false, false
	rec.ResolveCircularWait, rec.ResolveUntil = false, time.Time{}

	toName := ""
	if to != nil {
		toName = to.Name
		to.insert(rec)
	}
	c.lg.Debug("handover", slog.Any("record", rec), slog.String("to", toName))
	c.events.Post(Event{Type: HandoverEvent, Callsign: rec.Callsign, AircraftID: id,
		FromController: c.Name, ToController: toName, Time: now})
	return true
}

// transfer moves rec to another controller of the same facility without
// resetting its handshake state.
func (c *Controller) transfer(rec *TrafficRecord, to *Controller, now time.Time) {
	c.remove(rec.ID)
	to.traffic = append(to.traffic, rec)
	c.events.Post(Event{Type: HandoverEvent, Callsign: rec.Callsign, AircraftID: rec.ID,
		FromController: c.Name, ToController: to.Name, Time: now})
}

// Update runs one controller tick.
func (c *Controller) Update(now time.Time, fleet Fleet) {
	switch c.Kind {
	case KindGround:
		c.updateGround(now)
	case KindTower:
		c.updateTower(now)
	case KindApproach:
		c.updateApproach(now)
	}
	c.eraseDeadTraffic(fleet)
}

func (c *Controller) eraseDeadTraffic(fleet Fleet) {
	if fleet == nil {
		return
	}
	c.traffic = slices.DeleteFunc(c.traffic, func(rec *TrafficRecord) bool {
		if fleet.Alive(rec.ID) {
			return false
		}
		c.lg.Debug("erasing dead traffic", slog.Any("record", rec))
		c.forget(rec.ID)
		return true
	})
}

func (c *Controller) updateGround(now time.Time) {
	fac := c.facility
	targets := fac.groundTraffic()
	if gn := fac.ground(); gn != nil {
		gn.ExpireBlocks(now)
	}

	priority := 0
	for _, rec := range fac.Startup.traffic {
		if !rec.PushbackApproved && !fac.Radar.PushbackBlocked(rec, targets) {
			rec.PushbackApproved = true
			c.events.Post(Event{Type: PushbackApprovedEvent, Callsign: rec.Callsign, AircraftID: rec.ID,
				FromController: fac.Startup.Name, Time: now})
		}
		if rec.PushbackApproved {
			priority++
			rec.Priority = priority
		}
	}

	for _, rec := range slices.Clone(c.traffic) {
		priority++
		rec.Priority = priority

		c.resolveCircularWait(rec, now)
		c.reserveSegment(rec, now)
		c.CheckSpeedAdjustment(rec, now, targets)
		c.CheckHoldPosition(rec, now)
	}

	for _, rec := range c.traffic {
		c.CheckForCircularWaits(rec.ID)
	}
}

// resolveCircularWait acts on a circular wait found during the previous
// tick: the aircraft stops waiting, asks for a new route and ignores its
// blockers for a while.
func (c *Controller) resolveCircularWait(rec *TrafficRecord, now time.Time) {
	if !rec.ResolveCircularWait {
		return
	}
	if rec.ResolveUntil.IsZero() {
		c.lg.Info("breaking circular wait", slog.Any("record", rec))
		if rec.HoldPosition || rec.RequestHoldPosition {
			rec.ResumeTaxi = true
		}
		rec.RequestHoldPosition = false
		rec.clearWait()
		rec.RerouteRequested = true
		rec.ResolveUntil = now.Add(CircularWaitGrace)
		c.events.Post(Event{Type: CircularWaitEvent, Callsign: rec.Callsign, AircraftID: rec.ID,
			FromController: c.Name, Time: now})
	} else if !now.Before(rec.ResolveUntil) {
		rec.ResolveCircularWait = false
		rec.ResolveUntil = time.Time{}
	}
}

// reserveSegment blocks the taxiway segment rec is on so that opposing
// traffic does not enter it.
func (c *Controller) reserveSegment(rec *TrafficRecord, now time.Time) {
	gn := c.facility.ground()
	if gn == nil || rec.Node < 0 || len(rec.Intentions) == 0 {
		return
	}
	gn.Unblock(int(rec.ID))
	if seg := gn.FindSegment(rec.Node, rec.Intentions[0]); seg != nil {
		gn.Block(seg.Index, int(rec.ID), now, now.Add(SegmentReservation))
	}
}

// CheckSpeedAdjustment slows rec down, or stops it, according to what is
// in its way.
func (c *Controller) CheckSpeedAdjustment(rec *TrafficRecord, now time.Time, targets []*TrafficRecord) {
	if rec.ResolveCircularWait && now.Before(rec.ResolveUntil) {
		return
	}

	if blocker, _ := c.facility.Radar.Blocker(rec, targets); blocker != nil {
		d := math.DistanceM(rec.Position, blocker.Position)
		sizeA, sizeB := 2*rec.Radius, blocker.Radius
		if sizeA <= 0 {
			sizeA = 1
		}
		slowdown := min(d-stopMargin-sizeB, sizeA)
		correction := math.Clamp(slowdown/sizeA, 0, 1)
		v := math.Abs(blocker.Speed) * correction
		if v <= crawlSpeed {
			v = 0
		}
		c.waitFor(rec, blocker, v, now)
		return
	}

	if opp := c.opposingTraffic(rec, now, targets); opp != nil {
		c.waitFor(rec, opp, 0, now)
		return
	}

	if !rec.Waiting && rec.SpeedAdjustment == nil {
		return
	}
	if rec.Waiting && now.Sub(rec.WaitingSince) <= ResumeDelay {
		return
	}
	if rec.HoldPosition {
		rec.ResumeTaxi = true
	}
	rec.RequestHoldPosition = false
	rec.clearWait()
}

func (c *Controller) waitFor(rec, blocker *TrafficRecord, v float64, now time.Time) {
	rec.setSpeedAdjustment(v)
	if v == 0 && !rec.HoldPosition {
		rec.RequestHoldPosition = true
	}

	if !rec.Waiting || rec.WaitsFor != blocker.ID {
		rec.Waiting = true
		rec.WaitsFor = blocker.ID
		rec.WaitingSince = now
		rec.alerted = false
	}
	if !rec.alerted && now.Sub(rec.WaitingSince) > MaxWait {
		c.lg.Error("aircraft waiting too long", slog.Any("record", rec), slog.Any("blocker", blocker),
			slog.Duration("waited", now.Sub(rec.WaitingSince)))
		rec.alerted = true
	}
	if blocker.Waiting && blocker.WaitsFor == rec.ID {
		c.lg.Debug("mutual wait", slog.Any("record", rec), slog.Any("blocker", blocker))
	}
}

// opposingTraffic returns the aircraft that has reserved the segment rec
// is about to enter, coming the other way.
func (c *Controller) opposingTraffic(rec *TrafficRecord, now time.Time, targets []*TrafficRecord) *TrafficRecord {
	gn := c.facility.ground()
	if gn == nil || len(rec.Intentions) < 2 {
		return nil
	}
	n := gn.Node(rec.Intentions[0])
	if n == nil || math.DistanceM(rec.Position, n.Location) > nodeApproachDis {
		return nil
	}
	rev := gn.FindSegment(rec.Intentions[1], rec.Intentions[0])
	if rev == nil {
		return nil
	}
	id, ok := gn.BlockedBy(rev.Index, int(rec.ID), now)
	if !ok {
		return nil
	}
	for _, tgt := range targets {
		if int(tgt.ID) == id {
			return tgt
		}
	}
	return nil
}

// CheckHoldPosition relays hold and resume instructions and advances the
// departure and arrival handshakes.
func (c *Controller) CheckHoldPosition(rec *TrafficRecord, now time.Time) {
	interruptible := rec.State == StateNormal || rec.State == StateStartTaxi

	if rec.RequestHoldPosition && interruptible {
		from := rec.State
		if c.CheckTransmissionState(rec, from, StateAckHold, now, MsgHoldPosition, GroundToAir) {
			rec.resumeState = from
			rec.HoldPosition = true
			rec.RequestHoldPosition = false
		}
		return
	}
	if rec.ResumeTaxi && interruptible {
		from := rec.State
		if c.CheckTransmissionState(rec, from, StateAckResumeTaxi, now, MsgResumeTaxi, GroundToAir) {
			rec.resumeState = from
			rec.HoldPosition = false
			rec.ResumeTaxi = false
		}
		return
	}

	switch rec.State {
	case StateAckHold:
		c.CheckTransmissionState(rec, StateAckHold, rec.resumeState, now, MsgAcknowledgeHoldPosition, AirToGround)

	case StateAckResumeTaxi:
		to := rec.resumeState
		if rec.TaxiClearancePending && to == StateNormal {
			to = StateTaxiCleared
		}
		c.CheckTransmissionState(rec, StateAckResumeTaxi, to, now, MsgAcknowledgeResumeTaxi, AirToGround)

	case StateNormal:
		switch {
		case rec.Leg == nav.LegParkingTaxi && !rec.arrivalSwitched:
			if c.CheckTransmissionState(rec, StateNormal, StateSwitchTowerToGround, now, MsgSwitchTowerToGround,
				GroundToAir) {
				rec.arrivalSwitched = true
			}
		case rec.TaxiClearancePending:
			if c.CheckTransmissionState(rec, StateNormal, StateAckResumeTaxi, now, MsgRequestTaxiClearance,
				AirToGround) {
				rec.resumeState = StateNormal
			}
		case rec.Leg == nav.LegRunwayTaxi:
			// cleared along with the pushback
			rec.State = StateStartTaxi
		}

	case StateSwitchTowerToGround:
		c.CheckTransmissionState(rec, StateSwitchTowerToGround, StateNormal, now,
			MsgAcknowledgeSwitchTowerToGround, AirToGround)

	case StateTaxiCleared:
		c.CheckTransmissionState(rec, StateTaxiCleared, StateAckTaxiCleared, now, MsgIssueTaxiClearance, GroundToAir)

	case StateAckTaxiCleared:
		if c.CheckTransmissionState(rec, StateAckTaxiCleared, StateStartTaxi, now, MsgAcknowledgeTaxiClearance,
			AirToGround) {
			rec.TaxiClearancePending = false
		}

	case StateStartTaxi:
		if rec.HoldingShort {
			c.CheckTransmissionState(rec, StateStartTaxi, StateReportRunway, now, MsgReportRunwayHoldShort,
				GroundToAir)
		}

	case StateReportRunway:
		c.CheckTransmissionState(rec, StateReportRunway, StateAckReportRunway, now,
			MsgAcknowledgeReportRunwayHoldShort, AirToGround)

	case StateAckReportRunway:
		q := c.facility.RunwayQueues.Get(rec.Runway)
		if !q.Contains(int(rec.ID)) &&
			c.CheckTransmissionState(rec, StateAckReportRunway, StateSwitchGroundTower, now, MsgSwitchGroundTower,
				GroundToAir) {
			q.Add(int(rec.ID), now)
		}

	case StateSwitchGroundTower:
		if c.CheckTransmissionState(rec, StateSwitchGroundTower, StateAckSwitchGroundTower, now,
			MsgAcknowledgeSwitchGroundTower, AirToGround) {
			c.transfer(rec, c.facility.Tower, now)
		}
	}
}

// CheckForCircularWaits follows the chain of aircraft that id waits on.
// If it leads back to id, the wait can never end by itself and id is
// flagged to break it on the next tick. Chains that end at the user's
// aircraft or leave this controller are not cycles to resolve.
func (c *Controller) CheckForCircularWaits(id AircraftID) bool {
	rec := c.Lookup(id)
	if rec == nil || !rec.Waiting || rec.WaitsFor == UserAircraft {
		return false
	}

	cycle := []*TrafficRecord{rec}
	cur := rec.WaitsFor
	for range len(c.traffic) {
		if cur == id {
			break
		}
		r := c.Lookup(cur)
		if r == nil || !r.Waiting || r.WaitsFor == UserAircraft {
			return false
		}
		cycle = append(cycle, r)
		cur = r.WaitsFor
	}
	if cur != id {
		return false
	}

	if !slices.ContainsFunc(cycle, func(r *TrafficRecord) bool { return r.ResolveCircularWait }) {
		c.lg.Info("circular wait", log.AnyPointerSlice("cycle", cycle))
		rec.ResolveCircularWait = true
		rec.ResolveUntil = time.Time{}
	}
	return true
}

func (c *Controller) updateTower(now time.Time) {
	for _, rec := range slices.Clone(c.traffic) {
		switch rec.State {
		case StateAckSwitchGroundTower:
			c.CheckTransmissionState(rec, StateAckSwitchGroundTower, StateLineUpRunway, now, MsgReadyForDeparture,
				AirToGround)

		case StateLineUpRunway:
			q := c.facility.RunwayQueues.Get(rec.Runway)
			if front, ok := q.Front(); ok && front == int(rec.ID) && q.IsClear(now) &&
				c.CheckTransmissionState(rec, StateLineUpRunway, StateClearedTakeoff, now, MsgClearedForTakeoff,
					GroundToAir) {
				rec.ClearedForTakeoff = true
				q.Remove(int(rec.ID))
				q.MarkUsed(now, rec.Heavy)
			}

		case StateAnnounceArrival:
			if c.CheckTransmissionState(rec, StateAnnounceArrival, StateClearedToLand, now, MsgClearedToLand,
				GroundToAir) {
				rec.ClearedToLand = true
			}

		case StateClearedToLand:
			c.CheckTransmissionState(rec, StateClearedToLand, StateAckClearedToLand, now,
				MsgAcknowledgeClearedToLand, AirToGround)
		}
	}
}

// updateApproach checks arriving aircraft in with the tower once they
// are within the airport's approach distance.
func (c *Controller) updateApproach(now time.Time) {
	ap := c.facility.Airport
	dist := math.NMToMeters(aviation.DefaultApproachDistanceNM)
	if ap.Dynamics != nil && ap.Dynamics.ApproachDistance > 0 {
		dist = ap.Dynamics.ApproachDistance
	}

	for _, rec := range slices.Clone(c.traffic) {
		if rec.Leg != nav.LegApproach || rec.State != StateNormal {
			continue
		}
		if math.DistanceM(rec.Position, ap.Location) > 2*dist {
			continue
		}
		if c.CheckTransmissionState(rec, StateNormal, StateAnnounceArrival, now, MsgAnnounceArrival, AirToGround) {
			c.transfer(rec, c.facility.Tower, now)
		}
	}
}

// Snapshot returns a copy of c's records that later ticks do not touch.
func (c *Controller) Snapshot() []TrafficRecord {
	recs := make([]TrafficRecord, len(c.traffic))
	for i, rec := range c.traffic {
		recs[i] = *rec
	}
	return deep.MustCopy(recs)
}

///////////////////////////////////////////////////////////////////////////
// Facility

// Facility groups the controllers of one airport. They share the runway
// queues and the ground radar.
type Facility struct {
	Airport *aviation.Airport

	Startup  *Controller
	Ground   *Controller
	Tower    *Controller
	Approach *Controller

	RunwayQueues aviation.RunwayQueues
	Radar        *AirportGroundRadar
}

func NewFacility(ap *aviation.Airport, es *EventStream, lg *log.Logger) *Facility {
	lg = lg.With(slog.String("airport", ap.ICAO))
	f := &Facility{
		Airport:      ap,
		RunwayQueues: make(aviation.RunwayQueues),
		Radar:        NewAirportGroundRadar(ap.Ground),
	}
	f.Startup = newController(KindStartup, ap.ICAO+" Startup", f, es, lg)
	f.Ground = newController(KindGround, ap.ICAO+" Ground", f, es, lg)
	f.Tower = newController(KindTower, ap.ICAO+" Tower", f, es, lg)
	f.Approach = newController(KindApproach, ap.ICAO+" Approach", f, es, lg)
	return f
}

func (f *Facility) controllers() []*Controller {
	return []*Controller{f.Startup, f.Ground, f.Tower, f.Approach}
}

func (f *Facility) ground() *aviation.GroundNetwork {
	if f.Airport == nil {
		return nil
	}
	return f.Airport.Ground
}

// groundTraffic returns every record of the facility on the ground.
func (f *Facility) groundTraffic() []*TrafficRecord {
	var recs []*TrafficRecord
	for _, c := range []*Controller{f.Startup, f.Ground, f.Tower} {
		for _, rec := range c.traffic {
			if rec.Leg.OnGround() {
				recs = append(recs, rec)
			}
		}
	}
	return recs
}

// ControllerFor returns the controller handling aircraft on the given
// leg at this airport, or nil for legs flown en-route. Departures stay
// with approach (as departure control) while climbing out.
func (f *Facility) ControllerFor(leg nav.Leg) *Controller {
	switch leg {
	case nav.LegStartup:
		return f.Startup
	case nav.LegRunwayTaxi, nav.LegParkingTaxi, nav.LegParking:
		return f.Ground
	case nav.LegTakeoffRoll, nav.LegLandingRoll:
		return f.Tower
	case nav.LegClimb, nav.LegApproach:
		return f.Approach
	default:
		return nil
	}
}

// Locate returns the controller of f holding id and its record.
func (f *Facility) Locate(id AircraftID) (*Controller, *TrafficRecord) {
	for _, c := range f.controllers() {
		if rec := c.Lookup(id); rec != nil {
			return c, rec
		}
	}
	return nil, nil
}

// Update runs one tick of all of the facility's controllers. Ground
// considers the startup traffic before its own; approach runs before the
// tower so that arrivals it hands over are cleared in the same tick.
func (f *Facility) Update(now time.Time, fleet Fleet) {
	for _, c := range []*Controller{f.Ground, f.Startup, f.Approach, f.Tower} {
		c.Update(now, fleet)
	}
}
