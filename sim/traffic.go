// sim/traffic.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goforj/godump"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/util"
)

const (
	DefaultMaxLiveAircraft = 40

	// How long to wait for weather at the user's station before
	// starting traffic without it.
	metarTimeout = 15 * time.Second

	heuristicsSaveInterval = 300 * time.Second
	dumpInterval           = time.Minute

	// The sim clock is reset to /sim/time/gmt when they differ by more
	// than this.
	clockResync = time.Minute

	// user aircraft extent for the ground radars, meters
	userRadius = 20
	// below this height above the airport the user is taken to be on the
	// ground, feet
	userOnGroundAGL = 50
)

// TrafficConfig configures a TrafficManager.
type TrafficConfig struct {
	Timetables      []string
	MaxLiveAircraft int
}

// TrafficManager runs the AI traffic: it loads the timetables, keeps the
// schedules up to date, and flies the aircraft that are close enough to
// the user to matter.
type TrafficManager struct {
	ctx    *SimContext
	config TrafficConfig

	parsed      util.Handoff[*Timetable]
	parsing     bool
	timetable   *Timetable
	haveParsed  bool
	initialized bool

	flights   FlightPool
	schedules []*AISchedule
	fleet     *Fleet

	simTime        time.Time
	updateTimeSlop time.Duration

	metarStation string
	metarWaited  time.Duration
	metarOK      bool

	heuristics         Heuristics
	heuristicsFile     string
	lastHeuristicsSave time.Time
	lastDump           time.Time

	lg *log.Logger
}

func NewTrafficManager(ctx *SimContext, config TrafficConfig) *TrafficManager {
	if config.MaxLiveAircraft <= 0 {
		config.MaxLiveAircraft = DefaultMaxLiveAircraft
	}
	return &TrafficManager{
		ctx:        ctx,
		config:     config,
		flights:    make(FlightPool),
		fleet:      NewFleet(),
		heuristics: make(Heuristics),
		lg:         ctx.Lg,
	}
}

func (tm *TrafficManager) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("initialized", tm.initialized),
		slog.Int("schedules", len(tm.schedules)),
		slog.Int("live", tm.fleet.Len()),
		slog.Time("sim_time", tm.simTime))
}

// Init starts parsing the timetables in the background. Update finishes
// the initialization once the parse is done and the airports are loaded.
func (tm *TrafficManager) Init() {
	if tm.parsing || tm.initialized {
		return
	}
	s := tm.ctx.Props.Snapshot()
	now := s.GMT
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tm.heuristicsFile = s.HeuristicsFile
	if h, err := LoadHeuristics(tm.heuristicsFile); err != nil {
		tm.lg.Warn("unable to load heuristics", slog.String("path", tm.heuristicsFile), slog.Any("error", err))
	} else {
		tm.heuristics = h
	}

	tm.parsing = true
	paths := slices.Clone(tm.config.Timetables)
	lg := tm.lg
	go func() {
		var tt *Timetable
		defer func() { tm.parsed.Deliver(lg, tt) }()
		defer lg.CatchAndReportCrash()

		var err error
		if tt, err = LoadTimetables(paths, now, lg); err != nil {
			lg.Error("unable to load timetables", slog.Any("error", err))
		}
	}()
}

// pollInit completes initialization on the caller's goroutine once the
// parser has delivered and the nav cache can resolve airports.
func (tm *TrafficManager) pollInit() bool {
	if tm.initialized {
		return true
	}
	if !tm.parsing {
		tm.Init()
	}
	if !tm.haveParsed {
		tt, ok := tm.parsed.Take(tm.lg)
		if !ok {
			return false
		}
		if tt == nil {
			tt = NewTimetable()
		}
		tm.timetable, tm.haveParsed = tt, true
	}
	if tm.ctx.NavCache != nil && !tm.ctx.NavCache.Loaded() {
		return false
	}

	tm.finishInit(tm.timetable)
	tm.timetable = nil
	return true
}

func (tm *TrafficManager) finishInit(tt *Timetable) {
	tm.flights = FlightPool(tt.Flights)
	for _, spec := range append(slices.Clone(tt.Aircraft), tt.Untagged()...) {
		tm.schedules = append(tm.schedules, NewAISchedule(spec, tm.ctx))
	}
	tm.heuristics.Apply(tm.schedules)

	tm.initialized, tm.parsing = true, false
	tm.ctx.Props.Set(props.KeyTrafficManagerActive.Path(), true)
	tm.lg.Info("traffic manager initialized", slog.Int("schedules", len(tm.schedules)),
		slog.Int("flights", tt.NumFlights()))
}

// Schedules returns the schedules, best scoring first.
func (tm *TrafficManager) Schedules() []*AISchedule {
	return slices.Clone(tm.schedules)
}

func (tm *TrafficManager) Fleet() *Fleet { return tm.fleet }

func (tm *TrafficManager) SimTime() time.Time { return tm.simTime }

func (tm *TrafficManager) canSpawn() bool {
	return tm.fleet.Len() < tm.config.MaxLiveAircraft
}

// Update advances the traffic by elapsed, in one second steps; time that
// does not make up a full step is carried over to the next call.
func (tm *TrafficManager) Update(elapsed time.Duration) {
	s := tm.ctx.Props.Snapshot()
	if !s.TrafficManagerEnabled || !s.AIEnabled {
		return
	}
	if !tm.pollInit() || s.GMT.IsZero() {
		return
	}

	if tm.simTime.IsZero() || math.Abs(s.GMT.Sub(tm.simTime)) > clockResync {
		if !tm.simTime.IsZero() {
			tm.lg.Info("resynchronizing clock", slog.Time("from", tm.simTime), slog.Time("to", s.GMT))
		}
		tm.simTime, tm.updateTimeSlop = s.GMT, 0
	}

	elapsed += tm.updateTimeSlop
	ns := int(elapsed.Truncate(time.Second).Seconds())
	if ns > 10 {
		tm.lg.Warn("unexpected hitch in update rate", slog.Duration("elapsed", elapsed),
			slog.Int("steps", ns), slog.Duration("slop", tm.updateTimeSlop))
	}
	for range ns {
		tm.simTime = tm.simTime.Add(time.Second)
		tm.step(s, time.Second)
	}
	tm.updateTimeSlop = elapsed - elapsed.Truncate(time.Second)
}

// metarReady holds traffic back until there is weather for the user's
// station, but not for longer than metarTimeout.
func (tm *TrafficManager) metarReady(s props.Settings, dt time.Duration) bool {
	if s.MetarStation != tm.metarStation {
		tm.metarStation, tm.metarWaited, tm.metarOK = s.MetarStation, 0, false
	}
	if tm.metarOK || s.MetarStation == "" {
		return true
	}
	if s.MetarValid || tm.ctx.Weather.Ready(s.MetarStation) {
		tm.metarOK = true
		return true
	}
	tm.metarWaited += dt
	if tm.metarWaited >= metarTimeout {
		tm.lg.Info("no METAR; starting traffic without it", slog.String("station", s.MetarStation))
		tm.metarOK = true
	}
	return tm.metarOK
}

func (tm *TrafficManager) step(s props.Settings, dt time.Duration) {
	now := tm.simTime
	if !tm.metarReady(s, dt) {
		return
	}

	for _, ac := range tm.fleet.Aircraft() {
		ac.Update(tm.ctx, now, dt.Seconds())
	}

	tm.updateControllers(now, s)

	slices.SortStableFunc(tm.schedules, compareSchedules)
	tm.schedules = util.FilterSliceInPlace(tm.schedules, func(sched *AISchedule) bool {
		if sched.update(now, s.UserPosition, tm) {
			return true
		}
		tm.lg.Debug("schedule done", slog.Any("schedule", sched))
		return false
	})
	tm.fleet.reap()

	if now.Sub(tm.lastHeuristicsSave) >= heuristicsSaveInterval {
		if !tm.lastHeuristicsSave.IsZero() {
			tm.saveHeuristics()
		}
		tm.lastHeuristicsSave = now
	}
	if s.DumpDir != "" && now.Sub(tm.lastDump) >= dumpInterval {
		tm.lastDump = now
		if err := tm.Dump(s.DumpDir); err != nil {
			tm.lg.Warn("unable to dump traffic", slog.String("dir", s.DumpDir), slog.Any("error", err))
		}
	}
}

// updateControllers tells the ground radars where the user is and runs
// one tick of every controller.
func (tm *TrafficManager) updateControllers(now time.Time, s props.Settings) {
	for _, f := range tm.ctx.Facilities() {
		ap := f.Airport
		tm.ctx.Facility(ap)
		onGround := s.UserAltitude-ap.Elevation < userOnGroundAGL &&
			math.DistanceNM(s.UserPosition, ap.Location) < 10
		f.Radar.SetUserAircraft(s.UserPosition, 0, 0, userRadius, onGround)
		f.Update(now, tm.fleet)
	}
	tm.ctx.EnRoute.Update(now, tm.fleet)
}

func (tm *TrafficManager) saveHeuristics() {
	tm.heuristics.Update(tm.schedules)
	if err := tm.heuristics.Save(tm.heuristicsFile); err != nil {
		tm.lg.Warn("unable to save heuristics", slog.String("path", tm.heuristicsFile), slog.Any("error", err))
	}
}

// Dump writes the state of the live aircraft and the airport controllers
// to a file in dir.
func (tm *TrafficManager) Dump(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fn := filepath.Join(dir, fmt.Sprintf("aitraffic-%s.txt", tm.simTime.Format("20060102-150405")))
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, ac := range tm.fleet.Aircraft() {
		if _, err := f.WriteString(ac.DebugString() + "\n"); err != nil {
			return err
		}
	}
	records := make(map[string][]atc.TrafficRecord)
	for _, fac := range tm.ctx.Facilities() {
		for _, c := range []*atc.Controller{fac.Startup, fac.Ground, fac.Tower, fac.Approach} {
			if c.Len() > 0 {
				records[c.Name] = c.Snapshot()
			}
		}
	}
	_, err = f.WriteString(godump.DumpStr(records))
	return err
}

// Shutdown stops the parser, removes every live aircraft and saves the
// heuristics.
func (tm *TrafficManager) Shutdown() {
	tm.parsed.Abandon(tm.lg)
	tm.parsing = false

	for _, ac := range tm.fleet.Aircraft() {
		ac.die(tm.ctx, "shutdown")
	}
	tm.fleet.reap()
	for _, s := range tm.schedules {
		if s.flight != nil {
			tm.flights.release(s.flight, tm.simTime)
			s.flight = nil
		}
		s.aircraft = atc.UserAircraft
	}

	if tm.initialized {
		tm.saveHeuristics()
	}
	tm.ctx.Props.Set(props.KeyTrafficManagerActive.Path(), false)
	tm.ctx.Events.Destroy()
	tm.lg.Info("traffic manager shut down")
}
