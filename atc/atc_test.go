// atc/atc_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"slices"
	"testing"
	"time"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
)

var testOrigin = math.Point2LL{-122.375, 37.619}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// makeFacility builds an airport with one long two-way taxiway
// 1 (0,0) - 2 (300,0) - 3 (600,0) and runway 28 south of it.
func makeFacility(t *testing.T) (*Facility, *EventStream, math.LocalFrame) {
	t.Helper()
	f := math.MakeLocalFrame(testOrigin)
	at := func(x, y float64) math.Point2LL { return f.FromLocal([2]float64{x, y}) }

	ap := &aviation.Airport{ICAO: "KTST", Location: testOrigin}
	ap.Runways = []*aviation.Runway{
		{ID: "28", Threshold: at(600, -200), Heading: 270, Length: 1200, Width: 45},
	}
	gn := aviation.NewGroundNetwork()
	for _, n := range []aviation.TaxiNode{
		{Index: 1, Location: at(0, 0)},
		{Index: 2, Location: at(300, 0)},
		{Index: 3, Location: at(600, 0)},
	} {
		if _, err := gn.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range [][2]int{{1, 2}, {2, 3}} {
		if err := gn.AddTwoWaySegment(s[0], s[1]); err != nil {
			t.Fatal(err)
		}
	}
	ap.Ground = gn

	es := NewEventStream(nil)
	t.Cleanup(es.Destroy)
	return NewFacility(ap, es, nil), es, f
}

func report(id AircraftID, leg nav.Leg, p math.Point2LL, hdg, speed float64) PositionReport {
	return PositionReport{
		ID:       id,
		Callsign: "TST" + string(rune('0'+id)),
		Radius:   10,
		Leg:      leg,
		Runway:   "28",
		Position: p,
		Heading:  hdg,
		Speed:    speed,
		Node:     -1,
	}
}

type fleet map[AircraftID]bool

func (f fleet) Alive(id AircraftID) bool { return f[id] }

func messages(events []Event) []MessageKind {
	var m []MessageKind
	for _, e := range events {
		if e.Type == RadioTransmissionEvent {
			m = append(m, e.Message)
		}
	}
	return m
}

func TestEventStream(t *testing.T) {
	es := NewEventStream(nil)
	defer es.Destroy()

	es.Post(Event{})
	sub := es.Subscribe()
	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}

	es.Post(Event{Type: HandoverEvent})
	es.Post(Event{Type: SignOffEvent})
	s := sub.Get()
	if len(s) != 2 {
		t.Fatalf("expected 2 events, got %d", len(s))
	}
	if s[0].Type != HandoverEvent || s[1].Type != SignOffEvent {
		t.Errorf("unexpected events %v", s)
	}
	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}

	sub.Unsubscribe()
	if sub.Get() != nil {
		t.Errorf("Get after Unsubscribe returned events")
	}
}

func TestEventStreamCompact(t *testing.T) {
	es := NewEventStream(nil)
	defer es.Destroy()

	fast, slow := es.Subscribe(), es.Subscribe()
	next := [2]int{}
	for i := range 4096 {
		es.Post(Event{Type: EventType(i % int(NumEventTypes))})
		for j, sub := range []*EventsSubscription{fast, slow} {
			if j == 1 && i%7 != 0 {
				continue
			}
			for _, e := range sub.Get() {
				if int(e.Type) != next[j] {
					t.Fatalf("subscriber %d: expected %d, got %d", j, next[j], int(e.Type))
				}
				next[j] = (next[j] + 1) % int(NumEventTypes)
			}
		}
		es.mu.Lock()
		es.compact()
		es.mu.Unlock()
	}

	if cap(es.events) > 1024 {
		t.Errorf("events not compacted: cap %d", cap(es.events))
	}
}

func TestTransmissionGap(t *testing.T) {
	fac, es, f := makeFacility(t)
	sub := es.Subscribe()
	g := fac.Ground

	r := report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 0)
	r.TaxiClearanceRequest = true
	rec := g.AnnouncePosition(r, t0)

	type step struct {
		dt    time.Duration
		state MessageState
	}
	steps := []step{
		{0, StateAckResumeTaxi},
		{5 * time.Second, StateAckResumeTaxi},
		{10 * time.Second, StateTaxiCleared},
		{19 * time.Second, StateTaxiCleared},
		{20 * time.Second, StateAckTaxiCleared},
		{30 * time.Second, StateStartTaxi},
	}
	last := time.Time{}
	for _, s := range steps {
		fac.Update(t0.Add(s.dt), nil)
		if rec.State != s.state {
			t.Errorf("t+%s: expected %s, got %s", s.dt, s.state, rec.State)
		}
		if g.lastTransmission.Before(last) {
			t.Errorf("t+%s: last transmission went backward", s.dt)
		}
		last = g.lastTransmission
		if g.available && t0.Add(s.dt).Sub(g.lastTransmission) < TransmissionGap {
			t.Errorf("t+%s: available within the transmission gap", s.dt)
		}
		if s.state != StateStartTaxi && rec.TaxiCleared() {
			t.Errorf("t+%s: taxi cleared early", s.dt)
		}
	}
	if !rec.TaxiCleared() {
		t.Errorf("taxi clearance not acknowledged")
	}

	expect := []MessageKind{MsgRequestTaxiClearance, MsgAcknowledgeResumeTaxi, MsgIssueTaxiClearance,
		MsgAcknowledgeTaxiClearance}
	if m := messages(sub.Get()); !slices.Equal(m, expect) {
		t.Errorf("expected messages %v, got %v", expect, m)
	}
}

func TestDepartureHandshake(t *testing.T) {
	fac, es, f := makeFacility(t)
	sub := es.Subscribe()

	r := report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{600, 0}), 270, 0)
	r.TaxiClearanceRequest = true
	fac.Ground.AnnouncePosition(r, t0)
	r.TaxiClearanceRequest = false

	var rec *TrafficRecord
	for i := range 12 {
		now := t0.Add(time.Duration(i) * TransmissionGap)
		if i == 4 {
			r.HoldingShort = true
		}
		if c := fac.Ground.Owner(1); c != nil {
			c.AnnouncePosition(r, now)
		}
		fac.Update(now, nil)

		var c *Controller
		c, rec = fac.Locate(1)
		if rec == nil {
			t.Fatalf("record lost at step %d", i)
		}
		if rec.ClearedForTakeoff {
			if c != fac.Tower {
				t.Errorf("cleared by %s", c.Name)
			}
			break
		}
	}
	if rec == nil || !rec.ClearedForTakeoff {
		t.Fatalf("never cleared for takeoff: %v", rec)
	}
	if fac.RunwayQueues.Get("28").Contains(1) {
		t.Errorf("still queued after takeoff clearance")
	}

	expect := []MessageKind{MsgRequestTaxiClearance, MsgAcknowledgeResumeTaxi, MsgIssueTaxiClearance,
		MsgAcknowledgeTaxiClearance, MsgReportRunwayHoldShort, MsgAcknowledgeReportRunwayHoldShort,
		MsgSwitchGroundTower, MsgAcknowledgeSwitchGroundTower, MsgReadyForDeparture, MsgClearedForTakeoff}
	if m := messages(sub.Get()); !slices.Equal(m, expect) {
		t.Errorf("expected messages\n%v\ngot\n%v", expect, m)
	}
}

func TestPushForwardNeedsNoClearance(t *testing.T) {
	fac, _, f := makeFacility(t)
	rec := fac.Ground.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 10), t0)
	fac.Update(t0, nil)
	if rec.State != StateStartTaxi || !rec.TaxiCleared() {
		t.Errorf("expected silent START_TAXI, got %s", rec.State)
	}
}

func TestDepartureSeparation(t *testing.T) {
	for _, heavy := range []bool{false, true} {
		fac, _, f := makeFacility(t)
		q := fac.RunwayQueues.Get("28")
		var recs []*TrafficRecord
		for i := range 2 {
			id := AircraftID(i + 1)
			r := report(id, nav.LegRunwayTaxi, f.FromLocal([2]float64{600, float64(-50 * i)}), 270, 0)
			r.Heavy = heavy
			rec := fac.Tower.AnnouncePosition(r, t0)
			rec.State = StateLineUpRunway
			q.Add(int(id), t0.Add(time.Duration(i)*time.Second))
			recs = append(recs, rec)
		}

		sep := aviation.DepartureSeparation
		if heavy {
			sep = aviation.HeavyDepartureSeparation
		}
		for dt := time.Duration(0); dt <= sep; dt += 10 * time.Second {
			fac.Update(t0.Add(dt), nil)
			if dt == 0 && !recs[0].ClearedForTakeoff {
				t.Errorf("heavy=%v: first aircraft not cleared", heavy)
			}
			if dt < sep && recs[1].ClearedForTakeoff {
				t.Errorf("heavy=%v: second aircraft cleared after %s", heavy, dt)
			}
		}
		if !recs[1].ClearedForTakeoff {
			t.Errorf("heavy=%v: second aircraft not cleared after %s", heavy, sep)
		}
	}
}

func TestCheckSpeedAdjustment(t *testing.T) {
	for _, c := range []struct {
		dist   float64
		expect float64
		hold   bool
	}{
		{150, 10, false},
		{60, 10, false},
		{40, 5, false},
		{35, 2.5, false},
		{32, 0, true},
		{10, 0, true},
	} {
		fac, _, f := makeFacility(t)
		g := fac.Ground
		a := g.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 15), t0)
		b := g.AnnouncePosition(report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{c.dist, 0}), 90, 10), t0)
		b.Radius = 10

		g.CheckSpeedAdjustment(a, t0, fac.groundTraffic())
		if a.SpeedAdjustment == nil {
			t.Errorf("dist %g: no speed adjustment", c.dist)
			continue
		}
		if gotv := *a.SpeedAdjustment; math.Abs(gotv-c.expect) > 0.05 {
			t.Errorf("dist %g: expected speed %g, got %g", c.dist, c.expect, gotv)
		}
		if a.RequestHoldPosition != c.hold {
			t.Errorf("dist %g: expected hold request %v", c.dist, c.hold)
		}
		if !a.Waiting || a.WaitsFor != 2 || !a.WaitingSince.Equal(t0) {
			t.Errorf("dist %g: wait not recorded: %+v", c.dist, a)
		}
	}
}

func TestHoldAndResume(t *testing.T) {
	fac, es, f := makeFacility(t)
	sub := es.Subscribe()
	g := fac.Ground

	a := g.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 0), t0)
	rb := report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{30, 0}), 90, 0)
	g.AnnouncePosition(rb, t0)

	fac.Update(t0, nil)
	if !a.HoldPosition || a.CanMove() || a.State != StateAckHold {
		t.Fatalf("expected hold, got %+v", a)
	}
	fac.Update(t0.Add(10*time.Second), nil)
	if a.State != StateNormal {
		t.Errorf("hold not acknowledged: %s", a.State)
	}

	// The blocker leaves; the hold lasts at least the resume delay.
	rb.Position = f.FromLocal([2]float64{0, 500})
	g.AnnouncePosition(rb, t0.Add(15*time.Second))
	fac.Update(t0.Add(15*time.Second), nil)
	if !a.HoldPosition {
		t.Errorf("resumed before the resume delay")
	}

	fac.Update(t0.Add(25*time.Second), nil)
	if a.HoldPosition || a.SpeedAdjustment != nil || a.Waiting || a.State != StateAckResumeTaxi {
		t.Errorf("expected resume, got %+v", a)
	}
	fac.Update(t0.Add(35*time.Second), nil)
	if a.State != StateStartTaxi || !a.CanMove() {
		t.Errorf("resume not acknowledged: %s", a.State)
	}

	expect := []MessageKind{MsgHoldPosition, MsgAcknowledgeHoldPosition, MsgResumeTaxi, MsgAcknowledgeResumeTaxi}
	if m := messages(sub.Get()); !slices.Equal(m, expect) {
		t.Errorf("expected messages %v, got %v", expect, m)
	}
}

func TestSlowedResume(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground
	a := g.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 15), t0)
	rb := report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{60, 0}), 90, 10)
	b := g.AnnouncePosition(rb, t0)
	b.Radius = 10

	g.CheckSpeedAdjustment(a, t0, fac.groundTraffic())
	if a.SpeedAdjustment == nil || *a.SpeedAdjustment != 10 || a.RequestHoldPosition {
		t.Fatalf("expected a speed cap without a hold, got %+v", a)
	}

	// The blocker leaves right away; the cap stays for the resume delay.
	rb.Position = f.FromLocal([2]float64{0, 500})
	g.AnnouncePosition(rb, t0.Add(time.Second))
	for _, c := range []struct {
		dt     time.Duration
		capped bool
	}{
		{time.Second, true},
		{10 * time.Second, true},
		{ResumeDelay, true},
		{ResumeDelay + time.Second, false},
	} {
		g.CheckSpeedAdjustment(a, t0.Add(c.dt), fac.groundTraffic())
		if capped := a.SpeedAdjustment != nil; capped != c.capped {
			t.Errorf("after %s: capped %v, expected %v", c.dt, capped, c.capped)
		}
		if a.Waiting != c.capped {
			t.Errorf("after %s: waiting %v", c.dt, a.Waiting)
		}
	}
	if a.ResumeTaxi || a.HoldPosition {
		t.Errorf("slowed aircraft was handled as a held one: %+v", a)
	}
}

func TestCircularWait(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground

	// Far apart so that the radar sees nothing; the waits are set by hand.
	var recs []*TrafficRecord
	for i := range 3 {
		id := AircraftID(i + 1)
		recs = append(recs, g.AnnouncePosition(report(id, nav.LegRunwayTaxi,
			f.FromLocal([2]float64{float64(1000 * i), 1000}), 0, 0), t0))
	}
	zero := 0.0
	for i, rec := range recs {
		rec.Waiting = true
		rec.WaitsFor = recs[(i+1)%3].ID
		rec.WaitingSince = t0
		rec.SpeedAdjustment = &zero
	}

	if !g.CheckForCircularWaits(1) {
		t.Fatalf("cycle A->B->C->A not found")
	}

	fac.Update(t0.Add(time.Second), nil)

	resolved := slices.ContainsFunc(recs, func(r *TrafficRecord) bool {
		return r.ResolveCircularWait && r.SpeedAdjustment == nil
	})
	if !resolved {
		t.Errorf("no aircraft is resolving the circular wait")
	}
	if !recs[0].RerouteRequested {
		t.Errorf("originator did not request a new route")
	}

	// The flag clears after the grace period.
	fac.Update(t0.Add(time.Second+CircularWaitGrace), nil)
	if recs[0].ResolveCircularWait {
		t.Errorf("still resolving after the grace period")
	}
}

func TestCircularWaitChains(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground
	a := g.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 1000}), 0, 0), t0)
	b := g.AnnouncePosition(report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{1000, 1000}), 0, 0), t0)

	// waiting on the user aircraft
	a.Waiting, a.WaitsFor = true, 2
	b.Waiting, b.WaitsFor = true, UserAircraft
	if g.CheckForCircularWaits(1) {
		t.Errorf("chain ending at the user aircraft reported as a cycle")
	}

	// waiting on an aircraft another controller holds
	b.WaitsFor = 7
	if g.CheckForCircularWaits(1) {
		t.Errorf("chain leaving the controller reported as a cycle")
	}

	// not waiting at all
	a.Waiting = false
	if g.CheckForCircularWaits(1) {
		t.Errorf("idle aircraft reported as a cycle")
	}
}

func TestCircularWaitFromRadar(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground

	// A triangle of aircraft, each facing the next one.
	pts := [][2]float64{{0, 300}, {100, 300}, {50, 386.6}}
	var recs []*TrafficRecord
	for i := range 3 {
		from, to := f.FromLocal(pts[i]), f.FromLocal(pts[(i+1)%3])
		recs = append(recs, g.AnnouncePosition(report(AircraftID(i+1), nav.LegRunwayTaxi, from,
			math.Course(from, to), 0), t0))
	}

	fac.Update(t0, nil)
	for i, rec := range recs {
		if !rec.Waiting || rec.WaitsFor != recs[(i+1)%3].ID {
			t.Errorf("%d: expected to wait for %d, got %+v", rec.ID, recs[(i+1)%3].ID, rec)
		}
	}
	n := 0
	for _, rec := range recs {
		if rec.ResolveCircularWait {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected exactly one aircraft to resolve the wait, got %d", n)
	}

	fac.Update(t0.Add(time.Second), nil)
	if !slices.ContainsFunc(recs, func(r *TrafficRecord) bool {
		return r.ResolveCircularWait && r.SpeedAdjustment == nil && !r.Waiting
	}) {
		t.Errorf("circular wait not broken")
	}
}

func TestOpposingTraffic(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground

	ra := report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{290, 0}), 90, 10)
	ra.Node, ra.Intentions = 1, []int{2, 3}
	a := g.AnnouncePosition(ra, t0)

	rb := report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{520, 0}), 270, 10)
	rb.Node, rb.Intentions = 3, []int{2, 1}
	g.AnnouncePosition(rb, t0)

	// b was announced last and so is processed first; it reserves 3->2.
	fac.Update(t0, nil)
	if !a.Waiting || a.WaitsFor != 2 {
		t.Errorf("expected a to wait for opposing traffic, got %+v", a)
	}
	if a.SpeedAdjustment == nil || *a.SpeedAdjustment != 0 {
		t.Errorf("expected a to stop")
	}
}

func TestPushbackApproval(t *testing.T) {
	fac, _, f := makeFacility(t)
	s := fac.Startup.AnnouncePosition(report(1, nav.LegStartup, f.FromLocal([2]float64{0, 50}), 180, 0), t0)
	rb := report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{20, 0}), 90, 10)
	fac.Ground.AnnouncePosition(rb, t0)

	fac.Update(t0, nil)
	if s.PushbackApproved {
		t.Errorf("pushback approved with moving traffic %gm away", math.DistanceM(s.Position, rb.Position))
	}

	rb.Position = f.FromLocal([2]float64{300, 0})
	fac.Ground.AnnouncePosition(rb, t0.Add(time.Second))
	fac.Update(t0.Add(time.Second), nil)
	if !s.PushbackApproved {
		t.Errorf("pushback not approved once clear")
	}
	if s.Priority != 1 {
		t.Errorf("startup traffic should be first in priority, got %d", s.Priority)
	}
	if b := fac.Ground.Lookup(2); b.Priority != 2 {
		t.Errorf("expected priority 2, got %d", b.Priority)
	}
}

func TestRunwayTaxiFirst(t *testing.T) {
	fac, _, f := makeFacility(t)
	g := fac.Ground
	g.AnnouncePosition(report(1, nav.LegParkingTaxi, f.FromLocal([2]float64{0, 0}), 90, 10), t0)
	g.AnnouncePosition(report(2, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 500}), 90, 10), t0)
	if ids := []AircraftID{g.traffic[0].ID, g.traffic[1].ID}; ids[0] != 2 {
		t.Errorf("runway taxi traffic not first: %v", ids)
	}
}

func TestHandover(t *testing.T) {
	fac, es, f := makeFacility(t)
	sub := es.Subscribe()

	rec := fac.Tower.AnnouncePosition(report(1, nav.LegLandingRoll, f.FromLocal([2]float64{0, -200}), 270, 60), t0)
	rec.State = StateAckClearedToLand
	fac.RunwayQueues.Get("28").Add(1, t0)

	if !fac.Tower.Handover(1, nav.LegParkingTaxi, fac.ControllerFor(nav.LegParkingTaxi), t0) {
		t.Fatalf("handover failed")
	}
	if fac.Tower.Lookup(1) != nil || fac.Ground.Lookup(1) != rec {
		t.Errorf("record not moved to ground")
	}
	if fac.RunwayQueues.Get("28").Contains(1) {
		t.Errorf("record still in the runway queue")
	}
	if rec.State != StateNormal || rec.Leg != nav.LegParkingTaxi {
		t.Errorf("record not reset: %s %s", rec.State, rec.Leg)
	}

	// arrivals are told to switch to ground
	fac.Update(t0, nil)
	if rec.State != StateSwitchTowerToGround {
		t.Errorf("expected SWITCH_TOWER_TO_GROUND, got %s", rec.State)
	}

	evs := sub.Get()
	if !slices.ContainsFunc(evs, func(e Event) bool {
		return e.Type == HandoverEvent && e.FromController == fac.Tower.Name && e.ToController == fac.Ground.Name
	}) {
		t.Errorf("no handover event in %v", evs)
	}

	if fac.Ground.Handover(99, nav.LegParking, fac.Ground, t0) {
		t.Errorf("handover of unknown aircraft succeeded")
	}
}

func TestArrival(t *testing.T) {
	fac, _, _ := makeFacility(t)
	fac.Airport.Dynamics = nil
	p := math.Offset(testOrigin, 90, math.NMToMeters(10))
	fac.Approach.AnnouncePosition(report(1, nav.LegApproach, p, 270, 170), t0)

	fac.Update(t0, nil)
	c, rec := fac.Locate(1)
	if c != fac.Tower {
		t.Fatalf("arrival not with the tower")
	}
	if !rec.ClearedToLand || rec.State != StateClearedToLand {
		t.Errorf("expected landing clearance, got %s", rec.State)
	}
	fac.Update(t0.Add(TransmissionGap), nil)
	if rec.State != StateAckClearedToLand {
		t.Errorf("landing clearance not read back: %s", rec.State)
	}

	// far away arrivals stay with approach
	far := math.Offset(testOrigin, 90, math.NMToMeters(60))
	fac.Approach.AnnouncePosition(report(2, nav.LegApproach, far, 270, 250), t0)
	fac.Update(t0.Add(time.Minute), nil)
	if fac.Approach.Lookup(2) == nil {
		t.Errorf("distant arrival handed to the tower")
	}
}

func TestEraseDeadTraffic(t *testing.T) {
	fac, _, f := makeFacility(t)
	for i := range 3 {
		fac.Ground.AnnouncePosition(report(AircraftID(i+1), nav.LegParkingTaxi,
			f.FromLocal([2]float64{float64(500 * i), 1000}), 0, 0), t0)
	}
	fac.RunwayQueues.Get("28").Add(2, t0)

	fac.Update(t0, fleet{1: true, 3: true})
	if fac.Ground.Len() != 2 || fac.Ground.Lookup(2) != nil {
		t.Errorf("dead traffic not erased")
	}
	if fac.RunwayQueues.Get("28").Contains(2) {
		t.Errorf("dead traffic still queued")
	}
}

func TestSnapshot(t *testing.T) {
	fac, _, f := makeFacility(t)
	rec := fac.Ground.AnnouncePosition(report(1, nav.LegRunwayTaxi, f.FromLocal([2]float64{0, 0}), 90, 10), t0)
	v := 5.0
	rec.SpeedAdjustment = &v
	rec.Intentions = []int{1, 2}

	snap := fac.Ground.Snapshot()
	v = 7
	rec.Intentions[0] = 3
	rec.Callsign = "CHANGED"

	if len(snap) != 1 {
		t.Fatalf("expected one record, got %d", len(snap))
	}
	if *snap[0].SpeedAdjustment != 5 || snap[0].Intentions[0] != 1 || snap[0].Callsign == "CHANGED" {
		t.Errorf("snapshot shares state with the controller: %+v", snap[0])
	}
}
