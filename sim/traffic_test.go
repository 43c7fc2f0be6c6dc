// sim/traffic_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/util"
)

var gateToGate = []nav.Leg{nav.LegStartup, nav.LegRunwayTaxi, nav.LegTakeoffRoll, nav.LegClimb, nav.LegCruise,
	nav.LegApproach, nav.LegLandingRoll, nav.LegParkingTaxi, nav.LegParking}

// fly runs the fleet and the controllers once a second, in the order
// TrafficManager.step does, until every aircraft is gone or limit has
// passed. It returns the legs each aircraft went through and the time
// taken.
func fly(ctx *SimContext, fl *Fleet, start time.Time, limit time.Duration) (map[atc.AircraftID][]nav.Leg, time.Duration) {
	legs := make(map[atc.AircraftID][]nav.Leg)
	record := func() {
		for id, ac := range fl.aircraft {
			if l := legs[id]; len(l) == 0 || l[len(l)-1] != ac.Leg() {
				legs[id] = append(l, ac.Leg())
			}
		}
	}

	record()
	var elapsed time.Duration
	for elapsed < limit && fl.Len() > 0 {
		elapsed += time.Second
		now := start.Add(elapsed)
		for _, ac := range fl.Aircraft() {
			ac.Update(ctx, now, 1)
		}
		for _, f := range ctx.Facilities() {
			f.Update(now, fl)
		}
		ctx.EnRoute.Update(now, fl)
		record()
	}
	return legs, elapsed
}

// addGate adds stand B1 at (300,60), pushing back onto node 3.
func addGate(t *testing.T, ap *aviation.Airport) {
	t.Helper()
	f := math.MakeLocalFrame(ap.Location)
	if _, err := ap.Ground.AddParking(aviation.Parking{TaxiNode: aviation.TaxiNode{Index: 11,
		Location: f.FromLocal([2]float64{300, 60})}, Name: "B1", Type: aviation.ParkingGate, Radius: 25,
		PushBackNode: 3, HasPushBack: true}); err != nil {
		t.Fatal(err)
	}
	if err := ap.Ground.AddTwoWaySegment(11, 3); err != nil {
		t.Fatal(err)
	}
}

func TestGateToGate(t *testing.T) {
	ctx := makeContext(t, nil)
	fl := NewFleet()
	ac := fl.add(ctx, testConfig(ctx, t, "KSFO", "KOAK"))
	if err := ac.startAtGate(ctx, t0); err != nil {
		t.Fatal(err)
	}

	legs, elapsed := fly(ctx, fl, t0, time.Hour)
	if !ac.Finished() || !ac.Dead() {
		t.Fatalf("not parked after %s: leg %s, died %q\n%s", elapsed, ac.Leg(), ac.DeathReason(), ac.DebugString())
	}
	if !slices.Equal(legs[ac.ID], gateToGate) {
		t.Errorf("expected legs %v, got %v", gateToGate, legs[ac.ID])
	}
	if ac.DeathReason() != "parked" {
		t.Errorf("removed for %q", ac.DeathReason())
	}
	for _, ap := range []*aviation.Airport{ac.Flight.Departure, ac.Flight.Arrival} {
		if n := ap.Dynamics.NumLeased(); n != 0 {
			t.Errorf("%s: %d stands still leased", ap.ICAO, n)
		}
	}
	if c, _ := ctx.Locate(ac.ID, ac.dep, ac.arr); c != nil {
		t.Errorf("%s still tracks the parked aircraft", c.Name)
	}
}

func TestSharedGroundNetwork(t *testing.T) {
	ctx := makeContext(t, nil)
	for _, icao := range []string{"KSFO", "KOAK"} {
		ap, err := ctx.LookupAirport(icao)
		if err != nil {
			t.Fatal(err)
		}
		addGate(t, ap)
	}

	fl := NewFleet()
	var acs []*AIAircraft
	for i, cs := range []string{"TST100", "TST200"} {
		cfg := testConfig(ctx, t, "KSFO", "KOAK")
		cfg.Callsign = cs
		cfg.DepartureTime = t0.Add(time.Duration(i) * 2 * time.Minute)
		ac := fl.add(ctx, cfg)
		if err := ac.startAtGate(ctx, t0); err != nil {
			t.Fatal(err)
		}
		acs = append(acs, ac)
	}
	if acs[0].Plan.Gate.Parking == acs[1].Plan.Gate.Parking {
		t.Fatalf("both aircraft at %s", acs[0].Plan.Gate.Parking.Name)
	}

	legs, elapsed := fly(ctx, fl, t0, 90*time.Minute)
	for _, ac := range acs {
		if !ac.Finished() {
			t.Errorf("%s: not parked after %s: leg %s, died %q\n%s", ac.Callsign, elapsed, ac.Leg(),
				ac.DeathReason(), ac.DebugString())
			continue
		}
		if !slices.Equal(legs[ac.ID], gateToGate) {
			t.Errorf("%s: expected legs %v, got %v", ac.Callsign, gateToGate, legs[ac.ID])
		}
	}
	if n := acs[1].Flight.Arrival.Dynamics.NumLeased(); n != 0 {
		t.Errorf("%d stands still leased at the arrival airport", n)
	}
}

// sceneryStub reports whether scenery is ready and counts the requests.
type sceneryStub struct {
	ready bool
	asked int
}

func (s *sceneryStub) ScheduleScenery(math.Point2LL, float64, time.Duration) bool {
	s.asked++
	return s.ready
}

func TestSpawnWaitsForScenery(t *testing.T) {
	const timetable = `
AC KSFO N123AB A320-TST TST A320 TST gate - 18 false Aircraft/A320/a320.xml
FLIGHT TST100 IFR KSFO KOAK 24000 12:20:00 13:10:00 24Hr A320-TST
`
	for _, c := range []struct {
		name   string
		oracle SceneryOracle
	}{
		{"no oracle", nil},
		{"not loaded", &sceneryStub{}},
	} {
		t.Run(c.name, func(t *testing.T) {
			ctx := makeContext(t, nil)
			ctx.Scenery = c.oracle
			ctx.Props.Set(props.KeyLatitude.Path(), sfoOrigin.Latitude())
			ctx.Props.Set(props.KeyLongitude.Path(), sfoOrigin.Longitude())

			tt := NewTimetable()
			var e util.ErrorLogger
			tt.Parse([]byte(timetable), "test.conf", t0, &e, nil)
			if e.HaveErrors() {
				t.Fatal(strings.Join(e.Errors(), "\n"))
			}
			tm := NewTrafficManager(ctx, TrafficConfig{})
			tm.finishInit(tt)
			tm.simTime = t0

			s := ctx.Props.Snapshot()
			for range 30 {
				tm.simTime = tm.simTime.Add(time.Second)
				tm.step(s, time.Second)
			}
			sched := tm.Schedules()[0]
			if sched.DistanceToUserNM() >= AIStartDistanceNM || sched.Flight() == nil {
				t.Fatalf("schedule not in range of the user: %.1fnm, flight %v", sched.DistanceToUserNM(),
					sched.Flight())
			}
			if sched.Live() || tm.Fleet().Len() != 0 || sched.Hits != 0 {
				t.Errorf("aircraft created without scenery: live %v, fleet %d, hits %d", sched.Live(),
					tm.Fleet().Len(), sched.Hits)
			}
			if st, ok := c.oracle.(*sceneryStub); ok {
				if st.asked == 0 {
					t.Errorf("scenery never requested")
				}
				st.ready = true
			} else {
				ctx.Scenery = FlatEarth{}
			}

			tm.simTime = tm.simTime.Add(time.Second)
			tm.step(s, time.Second)
			if !sched.Live() || tm.Fleet().Len() != 1 || sched.Hits != 1 {
				t.Errorf("no aircraft once scenery is ready: live %v, fleet %d, hits %d", sched.Live(),
					tm.Fleet().Len(), sched.Hits)
			}
		})
	}
}
