// sim/flight.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/log"
)

const (
	Week = 7 * 24 * time.Hour
	Year = 365 * 24 * time.Hour
)

// ScheduledFlight is one leg of a timetable: a flight between two
// airports that repeats with a fixed period.
type ScheduledFlight struct {
	Callsign         string
	FlightRules      string
	DepICAO          string
	ArrICAO          string
	CruiseAltitude   int // feet
	RequiredAircraft string

	DepartureTime time.Time
	ArrivalTime   time.Time
	// RepeatPeriod is zero for flights that are not schedulable.
	RepeatPeriod time.Duration

	// Available is cleared while a schedule has claimed the flight.
	Available bool

	// as given in the timetable
	depText, arrText, repeatText string

	departure, arrival *aviation.Airport
	initialized        bool
	valid              bool
}

// NewScheduledFlight parses the textual times of a timetable entry
// against now.
func NewScheduledFlight(callsign, rules, dep, arr string, cruiseAlt int, depTime, arrTime, repeat,
	required string, now time.Time, lg *log.Logger) (*ScheduledFlight, error) {
	f := &ScheduledFlight{
		Callsign:         callsign,
		FlightRules:      rules,
		DepICAO:          strings.ToUpper(dep),
		ArrICAO:          strings.ToUpper(arr),
		CruiseAltitude:   cruiseAlt,
		RequiredAircraft: required,
		Available:        true,
		depText:          depTime,
		arrText:          arrTime,
		repeatText:       repeat,
		valid:            true,
	}

	f.RepeatPeriod = parseRepeatPeriod(repeat)
	if f.RepeatPeriod == Year && !strings.EqualFold(repeat, "year") {
		lg.Warn("unknown repeat period; using one year", slog.String("callsign", callsign),
			slog.String("repeat", repeat))
	}

	var err error
	if f.DepartureTime, err = parseTimetableTime(depTime, now); err != nil {
		return nil, err
	}
	if f.ArrivalTime, err = parseTimetableTime(arrTime, now); err != nil {
		return nil, err
	}
	if f.DepartureTime.Before(now) {
		f.DepartureTime = f.DepartureTime.Add(f.RepeatPeriod)
	}
	if f.ArrivalTime.Before(now) {
		f.ArrivalTime = f.ArrivalTime.Add(f.RepeatPeriod)
	}
	if f.DepartureTime.After(f.ArrivalTime) {
		// straddles midnight or the end of the week
		f.DepartureTime = f.DepartureTime.Add(-f.RepeatPeriod)
	}
	if !f.DepartureTime.Before(f.ArrivalTime) {
		return nil, fmt.Errorf("%s: departure %s not before arrival %s: %w", callsign, depTime, arrTime,
			ErrInvalidTime)
	}
	return f, nil
}

// parseRepeatPeriod handles "WEEK" and "<n>Hr"; anything else repeats
// yearly.
func parseRepeatPeriod(s string) time.Duration {
	if strings.EqualFold(s, "WEEK") {
		return Week
	}
	if n, ok := strings.CutSuffix(strings.ToLower(s), "hr"); ok {
		if h, err := strconv.Atoi(n); err == nil && h > 0 {
			return time.Duration(h) * time.Hour
		}
	}
	return Year
}

// parseTimetableTime parses "[WD/]HH:MM:SS" relative to the day of now,
// where WD is the day of the week, 0 for Sunday.
func parseTimetableTime(s string, now time.Time) (time.Time, error) {
	now = now.UTC()
	dayOffset := 0
	if wd, rest, ok := strings.Cut(s, "/"); ok {
		d, err := strconv.Atoi(wd)
		if err != nil || d < 0 || d > 6 {
			return time.Time{}, fmt.Errorf("%q: bad day of week: %w", s, ErrInvalidTime)
		}
		dayOffset = d - int(now.Weekday())
		s = rest
	}

	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	var hms [3]int
	limits := [3]int{23, 59, 59}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 || v > limits[i] {
			return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
		}
		hms[i] = v
	}

	y, m, d := now.Date()
	return time.Date(y, m, d+dayOffset, hms[0], hms[1], hms[2], 0, time.UTC), nil
}

// AdjustTime slides the flight by whole repeat periods so that its
// arrival lies in [now, now+RepeatPeriod).
func (f *ScheduledFlight) AdjustTime(now time.Time) {
	if f.RepeatPeriod <= 0 {
		return
	}

	var n int64
	if f.ArrivalTime.Before(now) {
		behind := now.Sub(f.ArrivalTime)
		n = int64((behind + f.RepeatPeriod - 1) / f.RepeatPeriod)
	} else if ahead := f.ArrivalTime.Sub(now); ahead >= f.RepeatPeriod {
		n = -int64(ahead / f.RepeatPeriod)
	}
	if n != 0 {
		shift := time.Duration(n) * f.RepeatPeriod
		f.DepartureTime = f.DepartureTime.Add(shift)
		f.ArrivalTime = f.ArrivalTime.Add(shift)
	}
}

// Duration is the scheduled block time.
func (f *ScheduledFlight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

// InitializeAirports resolves the departure and arrival airports. It
// returns false while either is not resolvable; a flight with an unknown
// airport is marked invalid and never resolves.
func (f *ScheduledFlight) InitializeAirports(ctx *SimContext) bool {
	if f.initialized {
		return f.valid
	}

	var err error
	if f.departure == nil {
		f.departure, err = ctx.LookupAirport(f.DepICAO)
	}
	if err == nil && f.arrival == nil {
		f.arrival, err = ctx.LookupAirport(f.ArrICAO)
	}
	if err != nil {
		if !errors.Is(err, aviation.ErrNavCacheLoading) {
			f.initialized, f.valid = true, false
		}
		return false
	}

	f.initialized, f.valid = true, true
	return true
}

// Valid is false once an airport of the flight turned out not to exist.
func (f *ScheduledFlight) Valid() bool {
	return f.valid
}

func (f *ScheduledFlight) Departure() *aviation.Airport { return f.departure }
func (f *ScheduledFlight) Arrival() *aviation.Airport   { return f.arrival }

// String returns the flight as a timetable row. The FLIGHT keyword is
// optional when parsing; it is always written, matching the AC rows.
func (f *ScheduledFlight) String() string {
	return fmt.Sprintf("FLIGHT %s %s %s %s %d %s %s %s %s", f.Callsign, f.FlightRules, f.DepICAO, f.ArrICAO,
		f.CruiseAltitude, f.depText, f.arrText, f.repeatText, f.RequiredAircraft)
}

func (f *ScheduledFlight) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("callsign", f.Callsign),
		slog.String("dep", f.DepICAO),
		slog.String("arr", f.ArrICAO),
		slog.Time("departure", f.DepartureTime),
		slog.Time("arrival", f.ArrivalTime),
		slog.Bool("available", f.Available))
}
