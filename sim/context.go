// sim/context.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/util"
	"github.com/mmp/aitraffic/wx"
)

// SceneryOracle reports whether terrain is loaded around a position;
// *scenery.TileManager implements it.
type SceneryOracle interface {
	ScheduleScenery(p math.Point2LL, rangeM float64, duration time.Duration) bool
}

// FlatEarth is the SceneryOracle for running without terrain. Its
// scenery is always ready.
type FlatEarth struct{}

func (FlatEarth) ScheduleScenery(math.Point2LL, float64, time.Duration) bool { return true }

// SimContext holds what every schedule and aircraft of one traffic
// manager shares. It is passed into each tick rather than kept in
// globals.
type SimContext struct {
	NavCache *aviation.NavCache
	Perf     *aviation.PerformanceDB
	Scenery  SceneryOracle // nil: never ready
	Weather  *wx.Cache
	Props    *props.Tree
	Events   *atc.EventStream
	Rand     *rand.Rand

	// EnRoute handles aircraft between airports.
	EnRoute *atc.Controller

	facilities      map[string]*atc.Facility
	missingAirports util.OnceSet[string]
	pendingAirports util.OnceSet[string]

	Lg *log.Logger
}

func NewSimContext(nc *aviation.NavCache, perf *aviation.PerformanceDB, sc SceneryOracle, r *rand.Rand,
	lg *log.Logger) *SimContext {
	es := atc.NewEventStream(lg)
	if perf == nil {
		perf = aviation.NewPerformanceDB()
	}
	return &SimContext{
		NavCache:   nc,
		Perf:       perf,
		Scenery:    sc,
		Weather:    wx.NewCache(),
		Props:      props.NewTree(),
		Events:     es,
		Rand:       r,
		EnRoute:    atc.NewEnRouteController(es, lg),
		facilities: make(map[string]*atc.Facility),
		Lg:         lg,
	}
}

// LookupAirport resolves icao in the nav cache. Each airport is logged
// once per kind of failure. Only ErrUnknownAirport marks it missing;
// ErrNavCacheLoading means the lookup may succeed later.
func (ctx *SimContext) LookupAirport(icao string) (*aviation.Airport, error) {
	ap, err := ctx.NavCache.Lookup(icao)
	if err != nil {
		if errors.Is(err, aviation.ErrNavCacheLoading) {
			if ctx.pendingAirports.Add(icao) {
				ctx.Lg.Debug("airport lookup waiting on nav cache", slog.String("icao", icao))
			}
		} else if ctx.missingAirports.Add(icao) {
			ctx.Lg.Warn("unable to resolve airport", slog.String("icao", icao), slog.Any("error", err))
		}
		return nil, err
	}
	return ap, nil
}

// MissingAirport reports whether icao is known not to exist.
func (ctx *SimContext) MissingAirport(icao string) bool {
	return ctx.missingAirports.Contains(icao)
}

// SceneryReady reports whether terrain within rangeM of p is loaded,
// asking for it to be loaded if not.
func (ctx *SimContext) SceneryReady(p math.Point2LL, rangeM float64) bool {
	return ctx.Scenery != nil && ctx.Scenery.ScheduleScenery(p, rangeM, 0)
}

// Performance returns the performance data for a class, falling back to
// the defaults for unknown classes.
func (ctx *SimContext) Performance(class string) *aviation.PerformanceData {
	if class == "" {
		return &aviation.DefaultPerformance
	}
	p, _ := ctx.Perf.Lookup(class, ctx.Lg)
	return p
}

// Facility returns the controllers of ap, creating them the first time
// the airport sees traffic. The airport's wind is refreshed from the
// latest METAR.
func (ctx *SimContext) Facility(ap *aviation.Airport) *atc.Facility {
	if ap == nil {
		return nil
	}
	f, ok := ctx.facilities[ap.ICAO]
	if !ok {
		if ap.Dynamics == nil {
			aviation.NewAirportDynamics(ap, ctx.Rand)
		}
		f = atc.NewFacility(ap, ctx.Events, ctx.Lg)
		ctx.facilities[ap.ICAO] = f
	}
	if m, ok := ctx.Weather.Get(ap.ICAO); ok {
		ap.Dynamics.SetWind(m.Wind())
	}
	return f
}

// Facilities returns the facilities created so far, ordered by ICAO.
func (ctx *SimContext) Facilities() []*atc.Facility {
	var fs []*atc.Facility
	for _, icao := range util.SortedMapKeys(ctx.facilities) {
		fs = append(fs, ctx.facilities[icao])
	}
	return fs
}

// Locate finds the controller holding id, looking at the given
// facilities and then en-route.
func (ctx *SimContext) Locate(id atc.AircraftID, facs ...*atc.Facility) (*atc.Controller, *atc.TrafficRecord) {
	for _, f := range facs {
		if f == nil {
			continue
		}
		if c, rec := f.Locate(id); c != nil {
			return c, rec
		}
	}
	if rec := ctx.EnRoute.Lookup(id); rec != nil {
		return ctx.EnRoute, rec
	}
	return nil, nil
}
