// aviation/groundnet.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"container/heap"
	"fmt"
	gomath "math"
	"slices"
	"time"

	"github.com/mmp/aitraffic/math"
)

type TaxiNode struct {
	Index     int
	Location  math.Point2LL
	Elevation float64 // feet
	HoldPoint bool    // runway hold-short point
	OnRunway  bool
}

type TaxiSegment struct {
	Index   int
	Start   int // node index
	End     int // node index
	Length  float64 // meters
	Heading float64 // true, from Start to End

	blocks []segmentBlock
}

type segmentBlock struct {
	ID    int
	From  time.Time
	Until time.Time
}

// GroundNetwork is the directed taxiway graph of one airport. It is
// built once and is read-only afterward, apart from the time-window
// blocks the ground controller places on segments.
type GroundNetwork struct {
	Segments []*TaxiSegment
	Parkings []*Parking
	Nodes    []*TaxiNode

	nodeByIndex map[int]*TaxiNode
	adj         map[int][]*TaxiSegment
}

func NewGroundNetwork() *GroundNetwork {
	return &GroundNetwork{
		nodeByIndex: make(map[int]*TaxiNode),
		adj:         make(map[int][]*TaxiSegment),
	}
}

func (gn *GroundNetwork) AddNode(n TaxiNode) (*TaxiNode, error) {
	if _, ok := gn.nodeByIndex[n.Index]; ok {
		return nil, fmt.Errorf("taxi node %d: duplicate index", n.Index)
	}
	np := &n
	gn.Nodes = append(gn.Nodes, np)
	gn.nodeByIndex[n.Index] = np
	return np, nil
}

// AddParking adds a parking; its embedded node becomes part of the graph.
func (gn *GroundNetwork) AddParking(p Parking) (*Parking, error) {
	if _, ok := gn.nodeByIndex[p.Index]; ok {
		return nil, fmt.Errorf("parking %s: duplicate node index %d", p.Name, p.Index)
	}
	pp := &p
	gn.Parkings = append(gn.Parkings, pp)
	gn.Nodes = append(gn.Nodes, &pp.TaxiNode)
	gn.nodeByIndex[p.Index] = &pp.TaxiNode
	return pp, nil
}

// AddSegment adds a directed segment; length and heading are derived
// from the node positions.
func (gn *GroundNetwork) AddSegment(from, to int) (*TaxiSegment, error) {
	a, b := gn.nodeByIndex[from], gn.nodeByIndex[to]
	if a == nil {
		return nil, fmt.Errorf("segment %d-%d: %d: %w", from, to, from, ErrUnknownNode)
	}
	if b == nil {
		return nil, fmt.Errorf("segment %d-%d: %d: %w", from, to, to, ErrUnknownNode)
	}
	seg := &TaxiSegment{
		Index:   len(gn.Segments),
		Start:   from,
		End:     to,
		Length:  math.DistanceM(a.Location, b.Location),
		Heading: math.Course(a.Location, b.Location),
	}
	gn.Segments = append(gn.Segments, seg)
	gn.adj[from] = append(gn.adj[from], seg)
	return seg, nil
}

func (gn *GroundNetwork) AddTwoWaySegment(a, b int) error {
	if _, err := gn.AddSegment(a, b); err != nil {
		return err
	}
	_, err := gn.AddSegment(b, a)
	return err
}

func (gn *GroundNetwork) Node(index int) *TaxiNode {
	return gn.nodeByIndex[index]
}

func (gn *GroundNetwork) Segment(index int) *TaxiSegment {
	if index < 0 || index >= len(gn.Segments) {
		return nil
	}
	return gn.Segments[index]
}

func (gn *GroundNetwork) HasParkings() bool {
	return len(gn.Parkings) > 0
}

// Parking returns the parking whose node has the given index, if any.
func (gn *GroundNetwork) Parking(index int) *Parking {
	for _, p := range gn.Parkings {
		if p.Index == index {
			return p
		}
	}
	return nil
}

func (gn *GroundNetwork) ParkingByName(name string) *Parking {
	for _, p := range gn.Parkings {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (gn *GroundNetwork) isParking(index int) bool {
	return gn.Parking(index) != nil
}

// SegmentsFrom returns the segments leaving the given node.
func (gn *GroundNetwork) SegmentsFrom(node int) []*TaxiSegment {
	return gn.adj[node]
}

// FindSegment returns the segment from one node to another, or nil.
func (gn *GroundNetwork) FindSegment(from, to int) *TaxiSegment {
	for _, s := range gn.adj[from] {
		if s.End == to {
			return s
		}
	}
	return nil
}

// FindSegmentByHeading returns the segment leaving node whose heading is
// closest to hdg, provided it is within tolerance degrees.
func (gn *GroundNetwork) FindSegmentByHeading(node int, hdg float64, tolerance float64) *TaxiSegment {
	var best *TaxiSegment
	bestDiff := tolerance
	for _, s := range gn.adj[node] {
		if d := math.HeadingDifference(s.Heading, hdg); d <= bestDiff {
			best, bestDiff = s, d
		}
	}
	return best
}

// Intersection describes where a ray first crosses a taxi segment.
type Intersection struct {
	Segment  *TaxiSegment
	Point    math.Point2LL
	Distance float64 // meters along the ray
}

// FindIntersection casts a ray from p along bearing and returns the
// nearest segment it crosses within maxDist meters. Segments that touch
// the ray's origin are ignored.
func (gn *GroundNetwork) FindIntersection(p math.Point2LL, bearing float64, maxDist float64) (Intersection, bool) {
	frame := math.MakeLocalFrame(p)
	origin := [2]float64{0, 0}
	dir := math.HeadingVector(bearing)

	var best Intersection
	found := false
	for _, s := range gn.Segments {
		a, b := gn.nodeByIndex[s.Start], gn.nodeByIndex[s.End]
		la, lb := frame.ToLocal(a.Location), frame.ToLocal(b.Location)
		t, ok := math.RaySegmentIntersection(origin, dir, la, lb)
		if !ok || t < 0.5 || t > maxDist {
			continue
		}
		if !found || t < best.Distance-1e-6 {
			best = Intersection{
				Segment:  s,
				Point:    frame.FromLocal(math.Scale2(dir, t)),
				Distance: t,
			}
			found = true
		}
	}
	return best, found
}

// FindNearestNode returns the node closest to p for which pred returns
// true; a nil pred accepts every node.
func (gn *GroundNetwork) FindNearestNode(p math.Point2LL, pred func(*TaxiNode) bool) *TaxiNode {
	var best *TaxiNode
	bestDist := gomath.MaxFloat64
	for _, n := range gn.Nodes {
		if pred != nil && !pred(n) {
			continue
		}
		if d := math.DistanceM(p, n.Location); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// RunwayEntryNode returns the taxi node from which an aircraft lines up
// on the given runway: the non-parking node nearest the takeoff point.
func (gn *GroundNetwork) RunwayEntryNode(rwy *Runway) *TaxiNode {
	return gn.FindNearestNode(rwy.PointOnCenterline(rwy.Displacement), func(n *TaxiNode) bool {
		return !gn.isParking(n.Index) && len(gn.adj[n.Index]) > 0
	})
}

// RunwayExitNode returns the non-parking node nearest to the point d
// meters down the runway, which is where landing traffic leaves it.
func (gn *GroundNetwork) RunwayExitNode(rwy *Runway, d float64) *TaxiNode {
	return gn.FindNearestNode(rwy.PointOnCenterline(d), func(n *TaxiNode) bool {
		return !gn.isParking(n.Index) && len(gn.adj[n.Index]) > 0
	})
}

///////////////////////////////////////////////////////////////////////////
// Segment blocks

// Block marks the segment as in use by aircraft id during [from, until).
func (gn *GroundNetwork) Block(segment int, id int, from, until time.Time) {
	if s := gn.Segment(segment); s != nil {
		s.blocks = append(s.blocks, segmentBlock{ID: id, From: from, Until: until})
	}
}

// Unblock removes all blocks placed by aircraft id.
func (gn *GroundNetwork) Unblock(id int) {
	for _, s := range gn.Segments {
		s.blocks = slices.DeleteFunc(s.blocks, func(b segmentBlock) bool { return b.ID == id })
	}
}

// IsBlocked returns true if some aircraft other than id has blocked the
// segment at time t.
func (gn *GroundNetwork) IsBlocked(segment int, id int, t time.Time) bool {
	_, ok := gn.BlockedBy(segment, id, t)
	return ok
}

// BlockedBy returns the first aircraft other than id that has blocked
// the segment at time t.
func (gn *GroundNetwork) BlockedBy(segment int, id int, t time.Time) (int, bool) {
	s := gn.Segment(segment)
	if s == nil {
		return 0, false
	}
	for _, b := range s.blocks {
		if b.ID != id && !t.Before(b.From) && t.Before(b.Until) {
			return b.ID, true
		}
	}
	return 0, false
}

// ExpireBlocks drops blocks that ended before t.
func (gn *GroundNetwork) ExpireBlocks(t time.Time) {
	for _, s := range gn.Segments {
		s.blocks = slices.DeleteFunc(s.blocks, func(b segmentBlock) bool { return !t.Before(b.Until) })
	}
}

///////////////////////////////////////////////////////////////////////////
// Routing

type TaxiRoute struct {
	Nodes    []int // node indices, start first
	Segments []int // segment indices; len(Segments) == len(Nodes)-1
	Distance float64
}

func (r TaxiRoute) Empty() bool {
	return len(r.Nodes) == 0
}

type routeItem struct {
	node int
	dist float64
	idx  int
}

type routeQueue []*routeItem

func (q routeQueue) Len() int           { return len(q) }
func (q routeQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q routeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx, q[j].idx = i, j
}
func (q *routeQueue) Push(x any) {
	it := x.(*routeItem)
	it.idx = len(*q)
	*q = append(*q, it)
}
func (q *routeQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// FindShortestRoute runs Dijkstra over segment lengths. Routes never pass
// through a parking other than the start and end nodes.
func (gn *GroundNetwork) FindShortestRoute(start, end int) (TaxiRoute, error) {
	if gn.nodeByIndex[start] == nil {
		return TaxiRoute{}, fmt.Errorf("%d: %w", start, ErrUnknownNode)
	}
	if gn.nodeByIndex[end] == nil {
		return TaxiRoute{}, fmt.Errorf("%d: %w", end, ErrUnknownNode)
	}
	if start == end {
		return TaxiRoute{Nodes: []int{start}}, nil
	}

	dist := map[int]float64{start: 0}
	prevSeg := make(map[int]*TaxiSegment)
	done := make(map[int]bool)

	q := &routeQueue{}
	heap.Push(q, &routeItem{node: start})
	for q.Len() > 0 {
		it := heap.Pop(q).(*routeItem)
		if done[it.node] {
			continue
		}
		done[it.node] = true
		if it.node == end {
			break
		}
		if it.node != start && gn.isParking(it.node) {
			continue
		}
		for _, s := range gn.adj[it.node] {
			nd := it.dist + s.Length
			if d, ok := dist[s.End]; !ok || nd < d {
				dist[s.End] = nd
				prevSeg[s.End] = s
				heap.Push(q, &routeItem{node: s.End, dist: nd})
			}
		}
	}

	if !done[end] {
		return TaxiRoute{}, fmt.Errorf("%d to %d: %w", start, end, ErrNoRoute)
	}

	var r TaxiRoute
	r.Distance = dist[end]
	for n := end; n != start; {
		s := prevSeg[n]
		r.Nodes = append(r.Nodes, n)
		r.Segments = append(r.Segments, s.Index)
		n = s.Start
	}
	r.Nodes = append(r.Nodes, start)
	slices.Reverse(r.Nodes)
	slices.Reverse(r.Segments)
	return r, nil
}
