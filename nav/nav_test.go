// nav/nav_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"errors"
	gomath "math"
	"slices"
	"strings"
	"testing"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
)

var ksfoOrigin = math.Point2LL{-122.375, 37.619}

// makeKSFO builds a small airport, coordinates in meters around
// ksfoOrigin:
//
//	A1 (0,60) gate, pushback point node 2
//	G2 (150,40) gate without pushback point, 40m north of taxiway 3-4
//	B1 (-300,60) cargo, pushback point node 2 by way of node 1
//	R1 (-300,300) ga, facing south with nothing behind it
//	taxiway 1 (-300,0) 2 (0,0) 3 (60,0) 4 (300,0)
//	4 - 5 (300,-150) - 7 (600,-150), 1 - 6 (-300,-150) - 5
//	runway 28 threshold (600,-200), runway 10 threshold (-600,-200)
func makeKSFO(t *testing.T) (*aviation.Airport, math.LocalFrame) {
	t.Helper()
	f := math.MakeLocalFrame(ksfoOrigin)
	at := func(x, y float64) math.Point2LL { return f.FromLocal([2]float64{x, y}) }

	ap := &aviation.Airport{ICAO: "KSFO", Location: ksfoOrigin, Elevation: 13}
	ap.Runways = []*aviation.Runway{
		{ID: "28", Threshold: at(600, -200), Heading: 270, Length: 1200, Width: 45},
		{ID: "10", Threshold: at(-600, -200), Heading: 90, Length: 1200, Width: 45},
	}

	gn := aviation.NewGroundNetwork()
	for _, n := range []aviation.TaxiNode{
		{Index: 1, Location: at(-300, 0)},
		{Index: 2, Location: at(0, 0)},
		{Index: 3, Location: at(60, 0)},
		{Index: 4, Location: at(300, 0)},
		{Index: 5, Location: at(300, -150), HoldPoint: true},
		{Index: 6, Location: at(-300, -150), HoldPoint: true},
		{Index: 7, Location: at(600, -150), HoldPoint: true},
	} {
		if _, err := gn.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []aviation.Parking{
		{TaxiNode: aviation.TaxiNode{Index: 10, Location: at(0, 60)}, Name: "A1", Type: aviation.ParkingGate,
			Radius: 20, PushBackNode: 2, HasPushBack: true},
		{TaxiNode: aviation.TaxiNode{Index: 11, Location: at(150, 40)}, Name: "G2", Type: aviation.ParkingGate,
			Radius: 30},
		{TaxiNode: aviation.TaxiNode{Index: 12, Location: at(-300, 60)}, Name: "B1", Type: aviation.ParkingCargo,
			Radius: 20, PushBackNode: 2, HasPushBack: true},
		{TaxiNode: aviation.TaxiNode{Index: 13, Location: at(-300, 300)}, Name: "R1",
			Type: aviation.ParkingGA, Radius: 15, Heading: 180},
	} {
		if _, err := gn.AddParking(p); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range [][2]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 7}, {1, 6}, {6, 5}, {10, 2}, {12, 1}} {
		if err := gn.AddTwoWaySegment(s[0], s[1]); err != nil {
			t.Fatal(err)
		}
	}
	ap.Ground = gn
	aviation.NewAirportDynamics(ap, rand.NewSeeded(42))
	return ap, f
}

func makeKJFK() *aviation.Airport {
	ap := &aviation.Airport{ICAO: "KJFK", Location: math.Point2LL{-73.8, 40.6}, Elevation: 13}
	ap.Runways = []*aviation.Runway{
		{ID: "31L", Threshold: math.Point2LL{-73.79, 40.63}, Heading: 301, Length: 3400, Width: 45},
	}
	aviation.NewAirportDynamics(ap, rand.NewSeeded(1))
	return ap
}

func testAircraft(radius float64, fltType string) *AircraftState {
	perf := aviation.DefaultPerformance
	return &AircraftState{
		Callsign:     "TST1",
		Perf:         &perf,
		Radius:       radius,
		FlightType:   fltType,
		AircraftType: "B738",
		Airline:      "TST",
		Altitude:     13,
	}
}

func names(wps []*Waypoint) []string {
	var n []string
	for _, wp := range wps {
		n = append(n, wp.Name)
	}
	return n
}

func near(a, b math.Point2LL, tol float64) bool {
	return math.DistanceM(a, b) <= tol
}

func TestPushBackWithPushBackPoint(t *testing.T) {
	dep, _ := makeKSFO(t)
	ac := testAircraft(15, aviation.ParkingGate)
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: dep, Arrival: makeKJFK(), CruiseAltitude: 35000, FirstFlight: true}

	if err := fp.CreatePushBack(ac, f); err != nil {
		t.Fatal(err)
	}
	if fp.Gate.Parking.Name != "A1" {
		t.Fatalf("leased %s, expected A1", fp.Gate.Parking.Name)
	}
	if n := names(fp.Waypoints); !slices.Equal(n, []string{"PushBackPoint"}) {
		t.Fatalf("waypoints %v", n)
	}
	wp := fp.Waypoints[0]
	if wp.Speed != ac.Perf.VTaxi {
		t.Errorf("PushBackPoint speed %f, expected %f", wp.Speed, ac.Perf.VTaxi)
	}
	if wp.Node != 2 || !near(wp.Position, dep.Ground.Node(2).Location, 0.01) {
		t.Errorf("PushBackPoint not at node 2: %+v", wp)
	}
	if fp.PushbackSpeed != -ac.Perf.VTaxi*2/3 {
		t.Errorf("pushback speed %f", fp.PushbackSpeed)
	}
	if !fp.TaxiClearanceRequest {
		t.Errorf("taxi clearance request not set")
	}
	if fp.StartNode != 2 || fp.Leg != LegStartup || fp.ActiveRunway == "" {
		t.Errorf("plan state: start %d leg %s runway %q", fp.StartNode, fp.Leg, fp.ActiveRunway)
	}
	if wp.Trigger() != TriggerPushBack {
		t.Errorf("trigger %s", wp.Trigger())
	}
}

func TestPushBackMultiNode(t *testing.T) {
	dep, _ := makeKSFO(t)
	ac := testAircraft(15, aviation.ParkingCargo)
	fp := NewFlightPlan("TST2")
	if err := fp.CreatePushBack(ac, FlightInfo{Departure: dep, Arrival: makeKJFK(), FirstFlight: true}); err != nil {
		t.Fatal(err)
	}
	if n := names(fp.Waypoints); !slices.Equal(n, []string{"pushback-1", "PushBackPoint"}) {
		t.Fatalf("waypoints %v", n)
	}
	if s := fp.Waypoints[0].Speed; s != -ac.Perf.VTaxi*2/3 {
		t.Errorf("reverse speed %f", s)
	}
	if s := fp.Waypoints[1].Speed; s != ac.Perf.VTaxi {
		t.Errorf("PushBackPoint speed %f", s)
	}
	if !slices.Equal(fp.Intentions(), []int{1, 2}) {
		t.Errorf("intentions %v", fp.Intentions())
	}
}

func TestPushForward(t *testing.T) {
	dep, f := makeKSFO(t)
	dep.Dynamics.PreferredRunways["com"] = []string{"28"}
	ac := testAircraft(25, aviation.ParkingGate)
	fp := NewFlightPlan("TST3")
	if err := fp.CreatePushBack(ac, FlightInfo{Departure: dep, Arrival: makeKJFK(), FirstFlight: true}); err != nil {
		t.Fatal(err)
	}
	if fp.Gate.Parking.Name != "G2" {
		t.Fatalf("leased %s, expected G2", fp.Gate.Parking.Name)
	}
	if fp.TaxiClearanceRequest {
		t.Errorf("push-forward should not request taxi clearance")
	}
	if len(fp.Waypoints) != 10 {
		t.Fatalf("%d waypoints, expected 10: %v", len(fp.Waypoints), names(fp.Waypoints))
	}

	// The taxiway is at y=0, 40m behind the stand; node 4 is nearer the
	// runway 28 entry, so the arc turns east with its center at (170,20).
	center := f.FromLocal([2]float64{170, 20})
	for i, wp := range fp.Waypoints {
		if d := math.DistanceM(wp.Position, center); gomath.Abs(d-20) > 0.2 {
			t.Errorf("waypoint %d is %.2fm from the arc center", i, d)
		}
		if wp.Speed != ac.Perf.VTaxi*2/3 {
			t.Errorf("waypoint %d speed %f", i, wp.Speed)
		}
		expected := "pushforward" + string(rune('0'+i))
		if i == len(fp.Waypoints)-1 {
			expected = "PushBackPoint-pushforward"
		}
		if wp.Name != expected {
			t.Errorf("waypoint %d named %s, expected %s", i, wp.Name, expected)
		}
	}
	if !near(fp.Waypoints[0].Position, f.FromLocal([2]float64{150, 20}), 0.2) {
		t.Errorf("arc does not start on the exit path")
	}
	if !near(fp.Waypoints[9].Position, f.FromLocal([2]float64{170, 0}), 0.2) {
		t.Errorf("arc does not end on the taxiway")
	}
	if fp.StartNode != 4 {
		t.Errorf("start node %d, expected 4", fp.StartNode)
	}
}

func TestPushForwardFailures(t *testing.T) {
	dep, _ := makeKSFO(t)

	ac := testAircraft(12, aviation.ParkingGA)
	fp := NewFlightPlan("TST4")
	err := fp.CreatePushBack(ac, FlightInfo{Departure: dep, Arrival: makeKJFK(), FirstFlight: true})
	if !errors.Is(err, ErrNoPushForwardSegment) {
		t.Errorf("expected ErrNoPushForwardSegment, got %v", err)
	}
	if dep.Dynamics.NumLeased() != 0 {
		t.Errorf("failed pushback kept its lease")
	}

	ac = testAircraft(80, aviation.ParkingGate)
	if err := fp.CreatePushBack(ac, FlightInfo{Departure: dep, Arrival: makeKJFK(), FirstFlight: true}); !errors.Is(err, aviation.ErrNoParkingAvailable) {
		t.Errorf("expected ErrNoParkingAvailable, got %v", err)
	}
}

func TestPushBackFallBack(t *testing.T) {
	dep := makeKJFK()
	ac := testAircraft(20, aviation.ParkingGate)
	fp := NewFlightPlan("TST5")
	if err := fp.CreatePushBack(ac, FlightInfo{Departure: dep, Arrival: dep, FirstFlight: true}); err != nil {
		t.Fatal(err)
	}
	if n := names(fp.Waypoints); !slices.Equal(n, []string{"park", "PushBackPoint-fallback"}) {
		t.Fatalf("waypoints %v", n)
	}
	p := fp.Waypoints[1].Position
	if d := math.DistanceM(dep.Location, p); gomath.Abs(d-44) > 0.1 {
		t.Errorf("fallback point %.2fm away", d)
	}
	if c := math.Course(dep.Location, p); math.HeadingDifference(c, 180) > 0.1 {
		t.Errorf("fallback course %.2f", c)
	}
}

func TestCruiseFarFromDestination(t *testing.T) {
	arr := makeKJFK()
	ac := testAircraft(20, aviation.ParkingGate)
	ac.Position = math.Point2LL{-100.0, 37.6}
	ac.Heading = 70
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: arr, Arrival: arr, CruiseAltitude: 35000, CruiseSpeed: 450}

	if err := fp.CreateCruise(ac, f, ac.Position); err != nil {
		t.Fatal(err)
	}
	if len(fp.Waypoints) != 2 {
		t.Fatalf("waypoints %v", names(fp.Waypoints))
	}
	if arr.Dynamics.ApproachDistance != math.NMToMeters(12) {
		t.Fatalf("approach distance %f", arr.Dynamics.ApproachDistance)
	}
	rwy, _ := arr.Runway(fp.ArrivalRunway)
	expected := []math.Point2LL{rwy.PointOnCenterline(-math.NMToMeters(36)), rwy.PointOnCenterline(0)}
	for i, wp := range fp.Waypoints {
		if !near(wp.Position, expected[i], 0.01) {
			t.Errorf("BOD %d at %s, expected %s", i, wp.Position, expected[i])
		}
		if wp.Altitude != 35000 || wp.Speed != 450 || wp.OnGround {
			t.Errorf("BOD %d: %+v", i, wp)
		}
	}
	if fp.Waypoints[0].Trigger() != TriggerBeginDescent {
		t.Errorf("first BOD is not a trigger")
	}
}

func TestCruiseNearDestination(t *testing.T) {
	arr := makeKJFK()
	ac := testAircraft(20, aviation.ParkingGate)
	rwy := arr.Runways[0]
	ac.Position = math.Offset(rwy.PointOnCenterline(0), 200, 30000)
	ac.Heading = 90
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: arr, Arrival: arr, CruiseAltitude: 11000, CruiseSpeed: 300}

	if err := fp.CreateCruise(ac, f, ac.Position); err != nil {
		t.Fatal(err)
	}
	if len(fp.Waypoints) != 2 {
		t.Fatalf("waypoints %v", names(fp.Waypoints))
	}
	for i, d := range []float64{10000, 15000} {
		wp := fp.Waypoints[i]
		if !near(wp.Position, math.Offset(ac.Position, 90, d), 0.01) {
			t.Errorf("BOD %d not %.0fm along 90 degrees", i, d)
		}
		if c := math.Course(ac.Position, wp.Position); math.HeadingDifference(c, 90) > 0.2 {
			t.Errorf("BOD %d course %.2f", i, c)
		}
		if wp.Altitude != 11000 {
			t.Errorf("BOD %d altitude %f", i, wp.Altitude)
		}
	}
}

func TestFilletArc(t *testing.T) {
	corner := ksfoOrigin
	for _, tc := range []struct {
		in, out float64
		points  int
	}{{0, 90, 10}, {90, 0, 10}, {0, 45, 6}, {270, 100, 18}, {0, 0, 1}, {0, 20, 3}} {
		arc := FilletArc(corner, tc.in, tc.out, 20, 100)
		if len(arc.Points) != tc.points {
			t.Errorf("%.0f->%.0f: %d points, expected %d", tc.in, tc.out, len(arc.Points), tc.points)
		}
		if tc.points == 1 {
			continue
		}
		for _, p := range arc.Points {
			if d := math.DistanceM(p, arc.Center); gomath.Abs(d-arc.Radius) > 0.05 {
				t.Errorf("%.0f->%.0f: point %.2fm from center", tc.in, tc.out, d)
			}
		}
	}

	// The radius shrinks to keep the tangent points within reach.
	arc := FilletArc(corner, 0, 90, 20, 5)
	if gomath.Abs(arc.Tangent-5) > 1e-6 || gomath.Abs(arc.Radius-5) > 1e-6 {
		t.Errorf("shrunk arc: tangent %f radius %f", arc.Tangent, arc.Radius)
	}
}

func maxHeadingChange(wps []*Waypoint) float64 {
	m := 0.
	for i := 2; i < len(wps); i++ {
		h0 := math.Course(wps[i-2].Position, wps[i-1].Position)
		h1 := math.Course(wps[i-1].Position, wps[i].Position)
		m = gomath.Max(m, math.HeadingDifference(h0, h1))
	}
	return m
}

func TestTakeoffTaxi(t *testing.T) {
	dep, _ := makeKSFO(t)
	ac := testAircraft(15, aviation.ParkingGate)
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: dep, Arrival: makeKJFK(), CruiseAltitude: 35000, FirstFlight: true}
	if err := fp.CreatePushBack(ac, f); err != nil {
		t.Fatal(err)
	}
	// Calm wind: the runway most aligned with the course to KJFK.
	if fp.ActiveRunway != "10" {
		t.Fatalf("active runway %s", fp.ActiveRunway)
	}

	ac.Position = fp.Waypoints[0].Position
	if err := fp.CreateTakeoffTaxi(ac, f); err != nil {
		t.Fatal(err)
	}
	n := names(fp.Waypoints)
	if n[len(n)-1] != "runway-hold" || n[0] != "1-arc0" {
		t.Errorf("waypoints %v", n)
	}
	if !slices.Equal(fp.TaxiRoute.Nodes, []int{2, 1, 6}) {
		t.Errorf("route %v", fp.TaxiRoute.Nodes)
	}
	if !slices.ContainsFunc(n, func(s string) bool { return strings.HasPrefix(s, "1-arc") }) {
		t.Errorf("no arc at the 90 degree turn at node 1: %v", n)
	}
	if m := maxHeadingChange(fp.Waypoints); m > minArcTurn+0.5 {
		t.Errorf("heading changes by %.1f degrees between waypoints", m)
	}
	for _, wp := range fp.Waypoints {
		if wp.Speed != ac.Perf.VTaxi || !wp.OnGround {
			t.Errorf("%s: speed %f ground %v", wp.Name, wp.Speed, wp.OnGround)
		}
	}
	if last := fp.Waypoints[len(fp.Waypoints)-1]; last.Trigger() != TriggerRunwayHold || last.Node != 6 {
		t.Errorf("last waypoint %+v", last)
	}
}

func TestFullFlight(t *testing.T) {
	dep, _ := makeKSFO(t)
	arr, _ := makeKSFO(t)
	arr.ICAO = "KOAK"
	arr.Location = math.Offset(dep.Location, 45, 150000)
	for _, r := range arr.Runways {
		r.Threshold = math.Offset(r.Threshold, 45, 150000)
	}
	for _, n := range arr.Ground.Nodes {
		n.Location = math.Offset(n.Location, 45, 150000)
	}

	ac := testAircraft(15, aviation.ParkingGate)
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: dep, Arrival: arr, CruiseAltitude: 24000, FirstFlight: true}

	var legs []Leg
	for leg := LegStartup; leg != LegNone; leg = leg.Next() {
		if err := fp.CreateLeg(leg, ac, f); err != nil {
			t.Fatalf("%s: %v", leg, err)
		}
		if fp.Leg != leg || fp.Empty() {
			t.Fatalf("%s: leg %s with %d waypoints", leg, fp.Leg, fp.Len())
		}
		legs = append(legs, leg)

		// Fly the leg instantly.
		for !fp.Empty() {
			wp := fp.Pop()
			ac.Position, ac.Altitude = wp.Position, wp.Altitude
			if wp.Trigger() == TriggerBeginDescent {
				fp.DropRemaining()
			}
			if wp.Trigger() == TriggerPushBack {
				fp.Gate.Release()
			}
		}
	}
	if len(legs) != 9 {
		t.Errorf("flew %d legs", len(legs))
	}
	if !fp.ArrivalGate.IsValid() || dep.Dynamics.NumLeased() != 0 {
		t.Errorf("gate state: arrival %v, departure leases %d", fp.ArrivalGate.IsValid(), dep.Dynamics.NumLeased())
	}
	if err := fp.CreateLeg(LegNone, ac, f); !errors.Is(err, ErrPlanComplete) {
		t.Errorf("expected ErrPlanComplete, got %v", err)
	}
}

func TestDescentAndLanding(t *testing.T) {
	arr, _ := makeKSFO(t)
	ac := testAircraft(15, aviation.ParkingGate)
	f := FlightInfo{Departure: arr, Arrival: arr, CruiseAltitude: 10000}

	// Arriving from the west for runway 28 needs a teardrop.
	fp := NewFlightPlan("TST1")
	fp.ArrivalRunway = "28"
	ac.Position = math.Offset(arr.Location, 270, 60000)
	ac.Altitude = 10000
	if err := fp.CreateDescent(ac, f, ac.Position); err != nil {
		t.Fatal(err)
	}
	expected := []string{"teardrop1", "teardrop2", "IAF", "final1", "final2", "final3", "final4", "final5", "threshold"}
	if n := names(fp.Waypoints); !slices.Equal(n, expected) {
		t.Errorf("descent waypoints %v", n)
	}
	for i := 3; i < len(fp.Waypoints); i++ {
		if fp.Waypoints[i].Altitude >= fp.Waypoints[i-1].Altitude {
			t.Errorf("%s is not below %s", fp.Waypoints[i].Name, fp.Waypoints[i-1].Name)
		}
	}

	// From the east it is straight in.
	fp = NewFlightPlan("TST1")
	fp.ArrivalRunway = "28"
	ac.Position = math.Offset(arr.Location, 90, 60000)
	if err := fp.CreateDescent(ac, f, ac.Position); err != nil {
		t.Fatal(err)
	}
	if fp.Waypoints[0].Name != "IAF" {
		t.Errorf("straight-in descent starts with %s", fp.Waypoints[0].Name)
	}

	ac.Position = fp.Waypoints[len(fp.Waypoints)-1].Position
	if err := fp.CreateLanding(ac, f); err != nil {
		t.Fatal(err)
	}
	if n := names(fp.Waypoints); !slices.Equal(n, []string{"touchdown", "rollout", "runway-exit"}) {
		t.Errorf("landing waypoints %v", n)
	}
	if fp.StartNode != 6 {
		t.Errorf("runway exit node %d, expected 6", fp.StartNode)
	}

	ac.Position = fp.Waypoints[2].Position
	if err := fp.CreateParkingTaxi(ac, f); err != nil {
		t.Fatal(err)
	}
	last := fp.Waypoints[len(fp.Waypoints)-1]
	if last.Name != "park" || last.Node != fp.ArrivalGate.Parking.Index {
		t.Errorf("parking taxi ends with %+v", last)
	}
	if fp.ArrivalGate.Parking.Name != "A1" {
		t.Errorf("arrival parking %s", fp.ArrivalGate.Parking.Name)
	}
}

func TestDegenerateTaxi(t *testing.T) {
	dep, _ := makeKSFO(t)
	ac := testAircraft(15, aviation.ParkingGate)
	fp := NewFlightPlan("TST1")
	f := FlightInfo{Departure: dep, Arrival: dep}

	// Fill every gate so that parking taxi fails.
	for _, p := range dep.Ground.Parkings {
		if _, err := dep.Dynamics.LeaseParking(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := fp.CreateLeg(LegParkingTaxi, ac, f); err != nil {
		t.Fatal(err)
	}
	if n := names(fp.Waypoints); !slices.Equal(n, []string{"park"}) {
		t.Errorf("degenerate parking taxi %v", n)
	}
	if err := fp.CreateLeg(LegStartup, ac, FlightInfo{Departure: dep, Arrival: dep, FirstFlight: true}); !errors.Is(err, aviation.ErrNoParkingAvailable) {
		t.Errorf("startup should fail without degenerate path, got %v", err)
	}
}
