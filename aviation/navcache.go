// aviation/navcache.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/util"
)

// NavCache is the airport database. It may be filled in the background;
// until it is marked loaded, lookups of absent airports report
// ErrNavCacheLoading rather than ErrUnknownAirport.
type NavCache struct {
	mu       sync.RWMutex
	airports map[string]*Airport
	loaded   atomic.Bool
}

func NewNavCache() *NavCache {
	return &NavCache{airports: make(map[string]*Airport)}
}

func (nc *NavCache) Add(ap *Airport) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.airports[strings.ToUpper(ap.ICAO)] = ap
}

func (nc *NavCache) SetLoaded() {
	nc.loaded.Store(true)
}

func (nc *NavCache) Loaded() bool {
	return nc.loaded.Load()
}

func (nc *NavCache) Lookup(icao string) (*Airport, error) {
	nc.mu.RLock()
	ap, ok := nc.airports[strings.ToUpper(icao)]
	nc.mu.RUnlock()
	if ok {
		return ap, nil
	}
	if !nc.Loaded() {
		return nil, fmt.Errorf("%s: %w", icao, ErrNavCacheLoading)
	}
	return nil, fmt.Errorf("%s: %w", icao, ErrUnknownAirport)
}

func (nc *NavCache) Len() int {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return len(nc.airports)
}

// LoadAsync loads the given airport files in the background and marks
// the cache loaded once all have been read. The returned channel is
// closed at that point.
func (nc *NavCache) LoadAsync(paths []string, r *rand.Rand, lg *log.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer nc.SetLoaded()
		defer lg.CatchAndReportCrash()

		var wg sync.WaitGroup
		for _, p := range paths {
			wg.Go(func() {
				if err := nc.LoadFile(p, r); err != nil {
					lg.Errorf("%s: %v", p, err)
				}
			})
		}
		wg.Wait()
		lg.Info("airport database loaded", "airports", nc.Len())
	}()
	return done
}

// LoadFile reads an airport database file; see ParseAirports for the
// format.
func (nc *NavCache) LoadFile(path string, r *rand.Rand) error {
	b, err := util.ReadMaybeCompressed(path)
	if err != nil {
		return err
	}
	aps, err := ParseAirports(b, r)
	if err != nil {
		return err
	}
	for _, ap := range aps {
		nc.Add(ap)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// JSON airport database

type jsonAirport struct {
	Name               string              `json:"name"`
	Location           math.Point2LL       `json:"location"`
	Elevation          float64             `json:"elevation"`
	ApproachDistanceNM float64             `json:"approach_distance_nm"`
	PreferredRunways   map[string][]string `json:"preferred_runways"`
	Runways            []jsonRunway        `json:"runways"`
	Ground             *jsonGround         `json:"ground"`
}

type jsonRunway struct {
	ID           string        `json:"id"`
	Threshold    math.Point2LL `json:"threshold"`
	Heading      float64       `json:"heading"`
	Length       float64       `json:"length"`
	Width        float64       `json:"width"`
	Displacement float64       `json:"displacement"`
}

type jsonGround struct {
	Nodes    []jsonNode    `json:"nodes"`
	Parkings []jsonParking `json:"parkings"`
	Segments []jsonSegment `json:"segments"`
}

type jsonNode struct {
	Index     int           `json:"index"`
	Location  math.Point2LL `json:"location"`
	Elevation float64       `json:"elevation"`
	Hold      bool          `json:"hold"`
	OnRunway  bool          `json:"on_runway"`
}

type jsonParking struct {
	jsonNode
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Radius        float64  `json:"radius"`
	Heading       float64  `json:"heading"`
	PushBack      *int     `json:"pushback"`
	Airlines      []string `json:"airlines"`
	AircraftTypes []string `json:"aircraft_types"`
}

type jsonSegment struct {
	Start  int  `json:"start"`
	End    int  `json:"end"`
	TwoWay bool `json:"two_way"`
}

// ParseAirports decodes a JSON object keyed by ICAO code. Locations are
// [longitude, latitude] pairs.
func ParseAirports(b []byte, r *rand.Rand) ([]*Airport, error) {
	var raw map[string]jsonAirport
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("airport database: %w", err)
	}

	var aps []*Airport
	for icao, ja := range raw {
		ap := &Airport{
			ICAO:      strings.ToUpper(icao),
			Name:      ja.Name,
			Location:  ja.Location,
			Elevation: ja.Elevation,
		}
		for _, jr := range ja.Runways {
			ap.Runways = append(ap.Runways, &Runway{
				ID:           jr.ID,
				Threshold:    jr.Threshold,
				Heading:      jr.Heading,
				Length:       jr.Length,
				Width:        jr.Width,
				Displacement: jr.Displacement,
				Elevation:    ja.Elevation,
			})
		}
		if ja.Ground != nil {
			gn, err := buildGround(ja.Ground)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", icao, err)
			}
			ap.Ground = gn
		}

		d := NewAirportDynamics(ap, r)
		if ja.ApproachDistanceNM > 0 {
			d.ApproachDistance = math.NMToMeters(ja.ApproachDistanceNM)
		}
		for class, ids := range ja.PreferredRunways {
			d.PreferredRunways[class] = ids
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

func buildGround(jg *jsonGround) (*GroundNetwork, error) {
	gn := NewGroundNetwork()
	for _, n := range jg.Nodes {
		if _, err := gn.AddNode(TaxiNode{Index: n.Index, Location: n.Location, Elevation: n.Elevation,
			HoldPoint: n.Hold, OnRunway: n.OnRunway}); err != nil {
			return nil, err
		}
	}
	for _, p := range jg.Parkings {
		pk := Parking{
			TaxiNode:      TaxiNode{Index: p.Index, Location: p.Location, Elevation: p.Elevation},
			Name:          p.Name,
			Type:          p.Type,
			Radius:        p.Radius,
			Heading:       p.Heading,
			Airlines:      p.Airlines,
			AircraftTypes: p.AircraftTypes,
		}
		if p.PushBack != nil {
			pk.PushBackNode, pk.HasPushBack = *p.PushBack, true
		}
		if _, err := gn.AddParking(pk); err != nil {
			return nil, err
		}
	}
	for _, s := range jg.Segments {
		var err error
		if s.TwoWay {
			err = gn.AddTwoWaySegment(s.Start, s.End)
		} else {
			_, err = gn.AddSegment(s.Start, s.End)
		}
		if err != nil {
			return nil, err
		}
	}
	return gn, nil
}
