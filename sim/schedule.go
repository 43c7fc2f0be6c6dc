// sim/schedule.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/mmp/aitraffic/atc"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/nav"
)

const (
	// Distances from the user at which schedules get and lose a live
	// aircraft.
	AIStartDistanceNM = 150
	AIDieDistanceNM   = 200

	// Radius around a position that must have scenery before an aircraft
	// may appear there.
	sceneryRangeM = 100

	// After an aircraft is lost to anything but distance, the schedule
	// waits this long before trying again.
	respawnBackoff = 5 * time.Minute
)

// groundTimeFromRadius returns the expected turnaround time on the
// ground for an aircraft of the given radius.
func groundTimeFromRadius(radius float64) time.Duration {
	switch {
	case radius < 10:
		return 15 * time.Minute
	case radius < 15:
		return 20 * time.Minute
	case radius < 20:
		return 30 * time.Minute
	case radius < 25:
		return 50 * time.Minute
	case radius < 30:
		return 60 * time.Minute
	case radius < 35:
		return 80 * time.Minute
	case radius < 45:
		return 120 * time.Minute
	default:
		return 150 * time.Minute
	}
}

///////////////////////////////////////////////////////////////////////////
// FlightPool

// FlightPool holds the scheduled flights by required-aircraft tag. A
// flight is flown by at most one schedule at a time.
type FlightPool map[string][]*ScheduledFlight

// claim takes the earliest available flight for tag that departs from
// `from` no earlier than `after`. When no flight leaves from `from`, any
// departure airport is accepted.
func (p FlightPool) claim(tag, from string, after, now time.Time) *ScheduledFlight {
	var best, anywhere *ScheduledFlight
	for _, f := range p[tag] {
		if !f.Available || !f.Valid() {
			continue
		}
		f.AdjustTime(now)
		if f.DepartureTime.Before(after) {
			continue
		}
		if from == "" || f.DepICAO == from {
			if best == nil || f.DepartureTime.Before(best.DepartureTime) {
				best = f
			}
		} else if anywhere == nil || f.DepartureTime.Before(anywhere.DepartureTime) {
			anywhere = f
		}
	}
	if best == nil {
		best = anywhere
	}
	if best != nil {
		best.Available = false
	}
	return best
}

// release makes f available again for its next repetition.
func (p FlightPool) release(f *ScheduledFlight, now time.Time) {
	f.Available = true
	f.AdjustTime(now)
}

// remove drops a flight that can never be flown.
func (p FlightPool) remove(f *ScheduledFlight) {
	p[f.RequiredAircraft] = slices.DeleteFunc(p[f.RequiredAircraft],
		func(g *ScheduledFlight) bool { return g == f })
}

///////////////////////////////////////////////////////////////////////////
// AISchedule

// AISchedule is one airframe working through the flights of its tag. It
// is either distant, with its position interpolated along the current
// flight, or live, with an AIAircraft flying it.
type AISchedule struct {
	AircraftSpec

	GroundTimeOffset   time.Duration
	CurrentDestination string
	CourseToDest       float64

	Score    float64
	RunCount int
	Hits     int
	LastRun  time.Time

	flight      *ScheduledFlight
	lastArrival time.Time
	aircraft    atc.AircraftID
	backoff     time.Time

	position       math.Point2LL
	distanceToUser float64 // nm

	valid    bool
	complete bool
}

func NewAISchedule(spec AircraftSpec, ctx *SimContext) *AISchedule {
	return &AISchedule{
		AircraftSpec:       spec,
		GroundTimeOffset:   time.Duration(ctx.Rand.Jitter(float64(groundTimeFromRadius(spec.Radius)), 0.2)),
		CurrentDestination: spec.HomePort,
		valid:              true,
	}
}

func (s *AISchedule) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("registration", s.Registration),
		slog.String("tag", s.RequiredAircraft),
		slog.Float64("score", s.Score),
		slog.Float64("dist_nm", s.distanceToUser),
	}
	if s.flight != nil {
		attrs = append(attrs, slog.String("flight", s.flight.Callsign))
	}
	if s.aircraft != atc.UserAircraft {
		attrs = append(attrs, slog.Int("aircraft", int(s.aircraft)))
	}
	return slog.GroupValue(attrs...)
}

func (s *AISchedule) Live() bool                { return s.aircraft != atc.UserAircraft }
func (s *AISchedule) Flight() *ScheduledFlight  { return s.flight }
func (s *AISchedule) Aircraft() atc.AircraftID  { return s.aircraft }
func (s *AISchedule) Position() math.Point2LL   { return s.position }
func (s *AISchedule) DistanceToUserNM() float64 { return s.distanceToUser }
func (s *AISchedule) Complete() bool            { return s.complete }
func (s *AISchedule) Valid() bool               { return s.valid }

// update advances the schedule to now. It returns false once the
// schedule has nothing left to do and may be dropped.
func (s *AISchedule) update(now time.Time, user math.Point2LL, tm *TrafficManager) bool {
	if s.complete && !s.Live() {
		return false
	}
	defer s.updateScore()

	if s.Live() {
		if s.updateLive(now, user, tm) {
			return true
		}
	}

	f := s.currentFlight(now, tm)
	if f == nil {
		if s.complete {
			return false
		}
		s.setPosition(s.restingPosition(tm.ctx), user)
		return true
	}
	if !f.InitializeAirports(tm.ctx) {
		if f.Valid() {
			// airports still loading
			return true
		}
		tm.lg.Warn("dropping flight with unknown airport", slog.Any("flight", f))
		tm.flights.remove(f)
		s.flight = nil
		return true
	}

	dep, arr := f.Departure(), f.Arrival()
	prestart := groundTimeFromRadius(s.Radius)
	if now.Before(f.DepartureTime.Add(-prestart)) {
		// waiting at the gate for the next flight
		s.setPosition(dep.Location, user)
		return true
	}

	frac := math.Clamp(float64(now.Sub(f.DepartureTime))/float64(f.Duration()), 0, 1)
	s.setPosition(math.Interpolate(dep.Location, arr.Location, frac), user)
	s.CourseToDest = math.Course(s.position, arr.Location)

	if s.distanceToUser < AIStartDistanceNM && now.After(s.backoff) && tm.canSpawn() &&
		tm.ctx.SceneryReady(s.position, sceneryRangeM) {
		s.promote(now, f, tm)
	}
	return true
}

// updateLive follows the live aircraft. It returns false when the
// aircraft is gone and the schedule falls back to distant mode.
func (s *AISchedule) updateLive(now time.Time, user math.Point2LL, tm *TrafficManager) bool {
	ac := tm.fleet.Get(s.aircraft)
	if ac != nil && !ac.Dead() {
		s.setPosition(ac.Position(), user)
		if s.distanceToUser > AIDieDistanceNM {
			ac.die(tm.ctx, "out of range")
			s.aircraft = atc.UserAircraft
			return false
		}
		return true
	}

	s.aircraft = atc.UserAircraft
	if ac != nil && ac.Finished() {
		s.finishFlight(now, now, tm)
	} else {
		reason := "unknown"
		if ac != nil {
			reason = ac.DeathReason()
		}
		tm.lg.Info("live aircraft lost", slog.Any("schedule", s), slog.String("reason", reason))
		s.backoff = now.Add(respawnBackoff)
	}
	return false
}

// currentFlight returns the flight the schedule is working on, claiming
// the next one when the previous has arrived.
func (s *AISchedule) currentFlight(now time.Time, tm *TrafficManager) *ScheduledFlight {
	if s.flight != nil && now.After(s.flight.ArrivalTime) && !s.Live() {
		s.finishFlight(s.flight.ArrivalTime, now, tm)
	}
	if s.flight != nil {
		return s.flight
	}

	after := time.Time{}
	if !s.lastArrival.IsZero() {
		after = s.lastArrival.Add(s.GroundTimeOffset)
	}
	s.flight = tm.flights.claim(s.RequiredAircraft, s.CurrentDestination, after, now)
	if s.flight != nil {
		s.RunCount++
		tm.lg.Debug("claimed flight", slog.Any("schedule", s), slog.Any("flight", s.flight))
	} else if len(tm.flights[s.RequiredAircraft]) == 0 {
		s.valid, s.complete = false, true
		tm.lg.Info("schedule has no flights", slog.Any("schedule", s))
	}
	return s.flight
}

// finishFlight returns the current flight to the pool once it has
// arrived at the given time.
func (s *AISchedule) finishFlight(arrived, now time.Time, tm *TrafficManager) {
	f := s.flight
	if f == nil {
		return
	}
	s.CurrentDestination = f.ArrICAO
	s.lastArrival = arrived
	s.flight = nil
	tm.flights.release(f, now)
}

func (s *AISchedule) restingPosition(ctx *SimContext) math.Point2LL {
	if s.CurrentDestination == "" || ctx.NavCache == nil {
		return s.position
	}
	if ap, err := ctx.NavCache.Lookup(s.CurrentDestination); err == nil {
		return ap.Location
	}
	return s.position
}

func (s *AISchedule) setPosition(p math.Point2LL, user math.Point2LL) {
	s.position = p
	s.distanceToUser = math.DistanceNM(p, user)
}

// promote creates the live aircraft: at the gate if the flight has not
// left yet, otherwise in cruise at the interpolated position.
func (s *AISchedule) promote(now time.Time, f *ScheduledFlight, tm *TrafficManager) {
	ctx := tm.ctx
	cfg := AircraftConfig{
		Callsign:      f.Callsign,
		Registration:  s.Registration,
		ModelPath:     s.ModelPath,
		Livery:        s.Livery,
		AircraftType:  s.AircraftType,
		Airline:       s.Airline,
		FlightType:    s.FlightType,
		PerfClass:     s.PerfClass,
		Radius:        s.Radius,
		Heavy:         s.Heavy,
		DepartureTime: f.DepartureTime,
		Flight: nav.FlightInfo{
			Departure:      f.Departure(),
			Arrival:        f.Arrival(),
			CruiseAltitude: float64(f.CruiseAltitude),
			CruiseSpeed:    scheduledSpeed(f),
			FirstFlight:    s.Hits == 0,
		},
	}

	ac := tm.fleet.add(ctx, cfg)
	var err error
	if now.Before(f.DepartureTime) {
		err = ac.startAtGate(ctx, now)
	} else {
		err = ac.startEnRoute(ctx, s.position, now)
	}
	if err != nil {
		ac.die(ctx, "unable to start: "+err.Error())
		tm.lg.Info("unable to create aircraft; will retry", slog.Any("schedule", s), slog.Any("error", err))
		return
	}

	s.aircraft = ac.ID
	s.Hits++
	s.LastRun = now
	tm.lg.Info("aircraft created", slog.Any("schedule", s), slog.Any("aircraft", ac))
}

// scheduledSpeed is the ground speed implied by the timetable, in knots.
func scheduledSpeed(f *ScheduledFlight) float64 {
	h := f.Duration().Hours()
	if h <= 0 || f.Departure() == nil || f.Arrival() == nil {
		return 0
	}
	return math.DistanceNM(f.Departure().Location, f.Arrival().Location) / h
}

// updateScore prefers schedules that are close to the user and that have
// often been seen before.
func (s *AISchedule) updateScore() {
	s.Score = float64(s.Hits+1) / float64(s.RunCount+1) * 100 / (100 + s.distanceToUser)
	if s.Heavy && s.RunCount == 0 {
		s.Score += 0.9
	}
}

// compareSchedules orders by score, highest first, then by the schedule
// that has waited longest since its last run.
func compareSchedules(a, b *AISchedule) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return a.LastRun.Compare(b.LastRun)
}
