// sim/timetable.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/util"
)

// AircraftSpec is one AC row: an airframe that flies the flights tagged
// with RequiredAircraft.
type AircraftSpec struct {
	HomePort         string
	Registration     string
	RequiredAircraft string
	Airline          string
	AircraftType     string
	Livery           string
	FlightType       string
	PerfClass        string
	Radius           float64 // meters
	Heavy            bool
	ModelPath        string
}

func (a AircraftSpec) String() string {
	return fmt.Sprintf("AC %s %s %s %s %s %s %s %s %g %t %s", a.HomePort, a.Registration, a.RequiredAircraft,
		a.Airline, a.AircraftType, a.Livery, a.FlightType, util.Select(a.PerfClass == "", "-", a.PerfClass),
		a.Radius, a.Heavy, a.ModelPath)
}

// Timetable is the result of parsing one or more timetable files.
type Timetable struct {
	Aircraft []AircraftSpec
	// Flights by required-aircraft tag, each sorted by departure time.
	Flights map[string][]*ScheduledFlight
}

func NewTimetable() *Timetable {
	return &Timetable{Flights: make(map[string][]*ScheduledFlight)}
}

func (tt *Timetable) NumFlights() int {
	n := 0
	for _, fs := range tt.Flights {
		n += len(fs)
	}
	return n
}

func (tt *Timetable) sort() {
	for _, fs := range tt.Flights {
		slices.SortStableFunc(fs, func(a, b *ScheduledFlight) int {
			return a.DepartureTime.Compare(b.DepartureTime)
		})
	}
}

// Parse adds the rows of one timetable to tt. Malformed rows are
// reported to e, prefixed with name:line, and skipped.
func (tt *Timetable) Parse(b []byte, name string, now time.Time, e *util.ErrorLogger, lg *log.Logger) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		e.Push(fmt.Sprintf("%s:%d", name, line))
		if err := tt.parseRow(fields, now, lg); err != nil {
			e.Error(err)
		}
		e.Pop()
	}
	if err := scanner.Err(); err != nil {
		e.Push(name)
		e.Error(err)
		e.Pop()
	}
	tt.sort()
}

func (tt *Timetable) parseRow(fields []string, now time.Time, lg *log.Logger) error {
	switch strings.ToUpper(fields[0]) {
	case "AC":
		ac, err := parseAircraftRow(fields[1:])
		if err != nil {
			return err
		}
		tt.Aircraft = append(tt.Aircraft, ac)
		return nil

	case "FLIGHT":
		fields = fields[1:]
	}

	if len(fields) != 9 {
		return fmt.Errorf("expected 9 flight fields, got %d: %w", len(fields), ErrMalformedRow)
	}
	alt, err := strconv.Atoi(fields[4])
	if err != nil || alt < 0 {
		return fmt.Errorf("%q: bad cruise altitude: %w", fields[4], ErrMalformedRow)
	}
	if len(fields[2]) != 4 || len(fields[3]) != 4 {
		return fmt.Errorf("%s %s: bad airport code: %w", fields[2], fields[3], ErrMalformedRow)
	}
	f, err := NewScheduledFlight(fields[0], fields[1], fields[2], fields[3], alt, fields[5], fields[6],
		fields[7], fields[8], now, lg)
	if err != nil {
		return err
	}
	tt.Flights[f.RequiredAircraft] = append(tt.Flights[f.RequiredAircraft], f)
	return nil
}

func parseAircraftRow(f []string) (AircraftSpec, error) {
	if len(f) != 11 {
		return AircraftSpec{}, fmt.Errorf("expected 11 aircraft fields, got %d: %w", len(f), ErrMalformedRow)
	}
	radius, err := strconv.ParseFloat(f[8], 64)
	if err != nil || radius <= 0 {
		return AircraftSpec{}, fmt.Errorf("%q: bad radius: %w", f[8], ErrMalformedRow)
	}
	heavy, err := strconv.ParseBool(f[9])
	if err != nil {
		return AircraftSpec{}, fmt.Errorf("%q: bad heavy flag: %w", f[9], ErrMalformedRow)
	}
	return AircraftSpec{
		HomePort:         strings.ToUpper(f[0]),
		Registration:     f[1],
		RequiredAircraft: f[2],
		Airline:          f[3],
		AircraftType:     f[4],
		Livery:           f[5],
		FlightType:       f[6],
		PerfClass:        util.Select(f[7] == "-", "", f[7]),
		Radius:           radius,
		Heavy:            heavy,
		ModelPath:        f[10],
	}, nil
}

// defaultAircraft synthesizes an airframe for a tag that has flights but
// no AC row.
func defaultAircraft(tag string, flights []*ScheduledFlight) AircraftSpec {
	airline := ""
	if len(flights) > 0 {
		cs := flights[0].Callsign
		if n := strings.IndexFunc(cs, func(r rune) bool { return r >= '0' && r <= '9' }); n > 0 {
			airline = cs[:n]
		}
	}
	home := ""
	if len(flights) > 0 {
		home = flights[0].DepICAO
	}
	return AircraftSpec{
		HomePort:         home,
		Registration:     tag,
		RequiredAircraft: tag,
		Airline:          airline,
		FlightType:       aviation.ParkingGate,
		Radius:           18,
	}
}

// Untagged returns specs for the tags that have flights but no aircraft.
func (tt *Timetable) Untagged() []AircraftSpec {
	have := make(map[string]bool)
	for _, ac := range tt.Aircraft {
		have[ac.RequiredAircraft] = true
	}
	var specs []AircraftSpec
	for _, tag := range util.SortedMapKeys(tt.Flights) {
		if !have[tag] {
			specs = append(specs, defaultAircraft(tag, tt.Flights[tag]))
		}
	}
	return specs
}

// timetableFiles expands directories into the timetable files they hold.
func timetableFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := strings.TrimSuffix(d.Name(), ".zst")
			if !d.IsDir() && (strings.HasSuffix(name, ".conf") || strings.HasSuffix(name, ".txt")) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, ErrTimetableNotFound
	}
	slices.Sort(files)
	return files, nil
}

// LoadTimetables reads all of the timetables in paths, which may name
// files or directories; zstd-compressed files are decompressed. Problems
// with individual rows are logged and do not cause an error.
func LoadTimetables(paths []string, now time.Time, lg *log.Logger) (*Timetable, error) {
	files, err := timetableFiles(paths)
	if err != nil {
		return nil, err
	}

	tt := NewTimetable()
	var e util.ErrorLogger
	for _, fn := range files {
		b, err := util.ReadMaybeCompressed(fn)
		if err != nil {
			e.Push(fn)
			e.Error(err)
			e.Pop()
			continue
		}
		tt.Parse(b, filepath.Base(fn), now, &e, lg)
	}
	if e.HaveErrors() {
		e.LogErrors(lg)
	}
	lg.Info("loaded timetables", slog.Int("files", len(files)), slog.Int("aircraft", len(tt.Aircraft)),
		slog.Int("flights", tt.NumFlights()))
	return tt, nil
}
