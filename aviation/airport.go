// aviation/airport.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mmp/aitraffic/math"
)

type Airport struct {
	ICAO      string
	Name      string
	Location  math.Point2LL
	Elevation float64 // feet

	Runways  []*Runway
	Ground   *GroundNetwork
	Dynamics *AirportDynamics
}

func (ap *Airport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("icao", ap.ICAO),
		slog.String("location", ap.Location.DDString()),
		slog.Int("runways", len(ap.Runways)))
}

// Runway returns the runway with the given identifier, e.g. "28L".
func (ap *Airport) Runway(id string) (*Runway, error) {
	for _, rwy := range ap.Runways {
		if rwy.ID == id {
			return rwy, nil
		}
	}
	return nil, fmt.Errorf("%s: %s: %w", ap.ICAO, id, ErrUnknownRunway)
}

func (ap *Airport) HasGroundNetwork() bool {
	return ap.Ground != nil && len(ap.Ground.Nodes) > 0
}

// Runway describes one landing direction of a physical runway; the
// reciprocal direction is a separate Runway.
type Runway struct {
	ID           string
	Threshold    math.Point2LL
	Heading      float64 // true
	Length       float64 // meters
	Width        float64 // meters
	Displacement float64 // meters of displaced threshold
	Elevation    float64 // feet
}

// PointOnCenterline returns the point d meters along the runway heading
// from the threshold. Negative distances are before the threshold, on the
// approach side.
func (r *Runway) PointOnCenterline(d float64) math.Point2LL {
	if d >= 0 {
		return math.Offset(r.Threshold, r.Heading, d)
	}
	return math.Offset(r.Threshold, math.OppositeHeading(r.Heading), -d)
}

func (r *Runway) End() math.Point2LL {
	return r.PointOnCenterline(r.Length)
}

// ReciprocalID returns the identifier of the opposite direction: "28L"
// becomes "10R".
func (r *Runway) ReciprocalID() string {
	id := strings.TrimLeft(r.ID, "0")
	n := 0
	for n < len(id) && id[n] >= '0' && id[n] <= '9' {
		n++
	}
	num, err := strconv.Atoi(id[:n])
	if err != nil {
		return ""
	}
	rnum := num + 18
	if rnum > 36 {
		rnum -= 36
	}
	suffix := ""
	switch id[n:] {
	case "L":
		suffix = "R"
	case "R":
		suffix = "L"
	case "C":
		suffix = "C"
	}
	return fmt.Sprintf("%02d%s", rnum, suffix)
}

func (r *Runway) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.Float64("heading", r.Heading),
		slog.Float64("length", r.Length))
}
