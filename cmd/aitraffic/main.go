// cmd/aitraffic/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// aitraffic runs the AI traffic subsystem headless: it loads the airport
// and timetable data, then advances the simulation clock and reports what
// the traffic is doing.

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/nav"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/scenery"
	"github.com/mmp/aitraffic/sim"
)

var (
	logLevel         = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir           = flag.String("logdir", "", "log file directory")
	timetables       = flag.String("timetables", "", "comma-separated timetable files or directories")
	airports         = flag.String("airports", "", "comma-separated airport database files")
	perfFile         = flag.String("perf", "", "aircraft performance database")
	metarFile        = flag.String("metar", "", "file of METARs, raw or JSON")
	propsFile        = flag.String("props", "", "JSON property tree to start from")
	savePropsFile    = flag.String("saveprops", "", "write the final property tree to this file")
	sceneryDirs      = flag.String("scenery", "", "comma-separated scenery roots")
	terraSyncBucket  = flag.String("terrasync-bucket", "", "GCS bucket to mirror missing scenery from into the first scenery root")
	terraSyncCreds   = flag.String("terrasync-credentials", "", "service account JSON for a private scenery bucket")
	sceneryIndex     = flag.String("scenery-index", "", "index of the tiles the scenery bucket provides")
	heuristicsFile   = flag.String("heuristics", "", "file in which to keep per-aircraft heuristics")
	dumpDir          = flag.String("dumpdir", "", "directory for periodic traffic dumps")
	startTime        = flag.String("start", "", "simulation start time, "+props.GMTLayout+" UTC (default now)")
	duration         = flag.Duration("duration", time.Hour, "simulated time to run for")
	rate             = flag.Float64("rate", 0, "simulation rate; 0 runs as fast as possible")
	lat              = flag.Float64("lat", 37.619, "user latitude")
	lon              = flag.Float64("lon", -122.375, "user longitude")
	alt              = flag.Float64("alt", 13, "user altitude, feet")
	metarStation     = flag.String("metar-station", "", "ICAO of the user's weather station")
	maxLive          = flag.Int("maxlive", sim.DefaultMaxLiveAircraft, "maximum number of live AI aircraft")
	seed             = flag.Int64("seed", 0, "random seed; 0 picks one")
	radio            = flag.Bool("radio", false, "print controller transmissions and handovers as they happen")
	reportInterval   = flag.Duration("report", 5*time.Minute, "simulated time between status reports")
	navLog           = flag.Bool("navlog", false, "enable navigation logging")
	navLogCategories = flag.String("navlog-categories", "all", "navigation log categories (comma-separated: leg,waypoint,trigger,speed,hold,route)")
	navLogCallsign   = flag.String("navlog-callsign", "", "filter navigation logs to only show this callsign (empty = show all)")
)

func splitList(s string) []string {
	var r []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			r = append(r, f)
		}
	}
	return r
}

func main() {
	flag.Parse()

	lg := log.New(*logLevel, *logDir)
	nav.InitNavLog(*navLog, *navLogCategories, *navLogCallsign)

	if len(splitList(*timetables)) == 0 || len(splitList(*airports)) == 0 {
		fmt.Fprintln(os.Stderr, "aitraffic: -timetables and -airports must be given")
		flag.Usage()
		os.Exit(1)
	}

	start := time.Now().UTC().Truncate(time.Second)
	if *startTime != "" {
		var err error
		if start, err = time.ParseInLocation(props.GMTLayout, *startTime, time.UTC); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *startTime, err)
			os.Exit(1)
		}
	}

	r := rand.New()
	if *seed != 0 {
		r = rand.NewSeeded(*seed)
	}

	nc := aviation.NewNavCache()
	nc.LoadAsync(splitList(*airports), rand.NewSeeded(int64(r.Uint32())), lg)

	var perf *aviation.PerformanceDB
	if *perfFile != "" {
		var err error
		if perf, err = aviation.LoadPerformanceDB(*perfFile); err != nil {
			lg.Errorf("%s: %v", *perfFile, err)
			os.Exit(1)
		}
	}

	tiles := makeTileManager(lg)
	var oracle sim.SceneryOracle = sim.FlatEarth{}
	if tiles != nil {
		oracle = tiles
		defer tiles.Close()
	} else {
		lg.Info("no scenery directories given; spawning without terrain")
	}

	ctx := sim.NewSimContext(nc, perf, oracle, r, lg)
	if *metarFile != "" {
		n, err := ctx.Weather.LoadFile(*metarFile, start, lg)
		if err != nil {
			lg.Errorf("%s: %v", *metarFile, err)
		}
		lg.Info("loaded METARs", slog.Int("count", n))
	}

	initProps(ctx.Props, start, lg)

	tm := sim.NewTrafficManager(ctx, sim.TrafficConfig{
		Timetables:      splitList(*timetables),
		MaxLiveAircraft: *maxLive,
	})
	tm.Init()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	run(ctx, tm, tiles, start, sigCh, lg)

	tm.Shutdown()
	if *savePropsFile != "" {
		if err := saveProps(ctx.Props, *savePropsFile); err != nil {
			lg.Errorf("%s: %v", *savePropsFile, err)
		}
	}
}

func makeTileManager(lg *log.Logger) *scenery.TileManager {
	roots := splitList(*sceneryDirs)
	if len(roots) == 0 {
		return nil
	}

	cfg := scenery.Config{Loader: scenery.DirLoader{Roots: roots}, Logger: lg}
	if *terraSyncBucket != "" {
		ts, err := scenery.NewGCSTerraSync(*terraSyncBucket, *terraSyncCreds, roots[0], lg)
		if err != nil {
			lg.Errorf("%s: %v", *terraSyncBucket, err)
		} else {
			cfg.TerraSync = ts
		}
	}
	if *sceneryIndex != "" {
		idx, err := scenery.LoadIndex(*sceneryIndex)
		if err != nil {
			lg.Warnf("%s: %v", *sceneryIndex, err)
		} else {
			cfg.Index = idx
		}
	}
	return scenery.NewTileManager(cfg)
}

// initProps loads the starting property tree and applies the command
// line settings on top of it.
func initProps(t *props.Tree, start time.Time, lg *log.Logger) {
	if *propsFile != "" {
		if f, err := os.Open(*propsFile); err != nil {
			lg.Errorf("%s: %v", *propsFile, err)
		} else {
			if err := t.Load(f); err != nil {
				lg.Errorf("%s: %v", *propsFile, err)
			}
			f.Close()
		}
	}

	t.SetGMT(start)
	t.Set(props.KeyLatitude.Path(), *lat)
	t.Set(props.KeyLongitude.Path(), *lon)
	t.Set(props.KeyAltitude.Path(), *alt)
	if *metarStation != "" {
		t.Set(props.KeyMetarStation.Path(), strings.ToUpper(*metarStation))
	}
	if *heuristicsFile != "" {
		t.Set(props.KeyHeuristicsFile.Path(), *heuristicsFile)
	}
	if *dumpDir != "" {
		t.Set(props.KeyDumpDir.Path(), *dumpDir)
	}
}

func saveProps(t *props.Tree, fn string) error {
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := t.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// run advances the clock in one second frames until the duration has
// elapsed or a signal arrives.
func run(ctx *sim.SimContext, tm *sim.TrafficManager, tiles *scenery.TileManager, start time.Time,
	sigCh <-chan os.Signal, lg *log.Logger) {
	const (
		frame = time.Second
		// scenery kept loaded around the user, meters
		userSceneryRange = 20000
	)

	var ticker *time.Ticker
	if *rate > 0 {
		ticker = time.NewTicker(time.Duration(float64(frame) / *rate))
		defer ticker.Stop()
	}

	var radioSub *atc.EventsSubscription
	if *radio {
		radioSub = ctx.Events.Subscribe()
		defer radioSub.Unsubscribe()
	}

	now, end := start, start.Add(*duration)
	lastReport := start
	for now.Before(end) {
		if ticker != nil {
			select {
			case <-ticker.C:
			case s := <-sigCh:
				lg.Info("caught signal", slog.String("signal", s.String()))
				return
			}
		} else {
			select {
			case s := <-sigCh:
				lg.Info("caught signal", slog.String("signal", s.String()))
				return
			default:
			}
		}

		now = now.Add(frame)
		ctx.Props.SetGMT(now)
		if tiles != nil {
			user := ctx.Props.Snapshot().UserPosition
			tiles.ScheduleScenery(user, userSceneryRange, time.Minute)
			tiles.Update(now)
		}
		tm.Update(frame)
		if radioSub != nil {
			for _, e := range radioSub.Get() {
				fmt.Printf("%s  %s\n", e.Time.Format("15:04:05"), e)
			}
		}

		if now.Sub(lastReport) >= *reportInterval {
			lastReport = now
			report(tm, now)
		}
	}
	report(tm, now)
}

func report(tm *sim.TrafficManager, now time.Time) {
	live := tm.Fleet().Aircraft()
	fmt.Printf("%s  schedules %d  live %d\n", now.Format(props.GMTLayout), len(tm.Schedules()), len(live))
	for _, ac := range live {
		fmt.Printf("  %-8s %-12s %s %6.0fft %4.0fkt\n", ac.Callsign, ac.Leg(), ac.Position().DDString(),
			ac.State.Altitude, ac.State.Speed)
	}
}
