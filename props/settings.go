// props/settings.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package props

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mmp/aitraffic/math"
)

// Key identifies one property the traffic subsystem reads each tick.
type Key int

const (
	KeyTrafficManagerEnabled Key = iota
	KeyAIEnabled
	KeyTrafficManagerActive
	KeyGMT
	KeyMetarStation
	KeyMetarValid
	KeyLatitude
	KeyLongitude
	KeyAltitude
	KeyHeuristicsFile
	KeyDumpDir
	NumKeys
)

var keyPaths = [NumKeys]string{
	"/sim/traffic-manager/enabled",
	"/sim/ai/enabled",
	"/sim/traffic-manager/active",
	"/sim/time/gmt",
	"/environment/metar/station-id",
	"/environment/metar/valid",
	"/position/latitude-deg",
	"/position/longitude-deg",
	"/position/altitude-ft",
	"/sim/traffic-manager/heuristics-file",
	"/sim/traffic-manager/dumpdir",
}

func (k Key) Path() string {
	return keyPaths[k]
}

// GMTLayout is the format of /sim/time/gmt.
const GMTLayout = "2006-01-02T15:04:05"

// Settings is the per-tick snapshot of the properties the AI core
// depends on. The core never reads the tree directly.
type Settings struct {
	TrafficManagerEnabled bool
	AIEnabled             bool
	TrafficManagerActive  bool
	GMT                   time.Time
	MetarStation          string
	MetarValid            bool
	UserPosition          math.Point2LL
	UserAltitude          float64 // feet
	HeuristicsFile        string
	DumpDir               string
}

func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("tm_enabled", s.TrafficManagerEnabled),
		slog.Bool("ai_enabled", s.AIEnabled),
		slog.Time("gmt", s.GMT),
		slog.String("metar_station", s.MetarStation),
		slog.String("user", s.UserPosition.DDString()))
}

// Snapshot reads the settings from the tree. A missing or malformed GMT
// leaves the zero time, which callers treat as "clock not ready".
func (t *Tree) Snapshot() Settings {
	s := Settings{
		TrafficManagerEnabled: t.GetBool(KeyTrafficManagerEnabled.Path(), true),
		AIEnabled:             t.GetBool(KeyAIEnabled.Path(), true),
		TrafficManagerActive:  t.GetBool(KeyTrafficManagerActive.Path(), false),
		MetarStation:          t.GetString(KeyMetarStation.Path(), ""),
		MetarValid:            t.GetBool(KeyMetarValid.Path(), false),
		UserPosition: math.Point2LL{t.GetFloat(KeyLongitude.Path(), 0),
			t.GetFloat(KeyLatitude.Path(), 0)},
		UserAltitude:   t.GetFloat(KeyAltitude.Path(), 0),
		HeuristicsFile: t.GetString(KeyHeuristicsFile.Path(), ""),
		DumpDir:        t.GetString(KeyDumpDir.Path(), ""),
	}
	if g := t.GetString(KeyGMT.Path(), ""); g != "" {
		if tm, err := time.ParseInLocation(GMTLayout, g, time.UTC); err == nil {
			s.GMT = tm
		}
	}
	return s
}

func (t *Tree) SetGMT(tm time.Time) {
	t.Set(KeyGMT.Path(), tm.UTC().Format(GMTLayout))
}

///////////////////////////////////////////////////////////////////////////
// AI model publishing

// AIModel is what one live aircraft publishes under /ai/models.
type AIModel struct {
	Callsign  string
	Position  math.Point2LL
	Altitude  float64 // feet
	Heading   float64
	Speed     float64 // knots
	Leg       string
	Model     string
	Livery    string
	Departure string
	Arrival   string
}

func AIModelPath(index int) string {
	return fmt.Sprintf("/ai/models/aircraft[%d]", index)
}

func (t *Tree) PublishAIModel(index int, m AIModel) {
	p := AIModelPath(index)
	t.Set(p+"/callsign", m.Callsign)
	t.Set(p+"/valid", true)
	t.Set(p+"/position/latitude-deg", m.Position.Latitude())
	t.Set(p+"/position/longitude-deg", m.Position.Longitude())
	t.Set(p+"/position/altitude-ft", m.Altitude)
	t.Set(p+"/orientation/true-heading-deg", m.Heading)
	t.Set(p+"/velocities/true-airspeed-kt", m.Speed)
	t.Set(p+"/leg", m.Leg)
	t.Set(p+"/sim/model/path", m.Model)
	t.Set(p+"/sim/model/livery", m.Livery)
	t.Set(p+"/departure-airport-id", m.Departure)
	t.Set(p+"/arrival-airport-id", m.Arrival)
}

func (t *Tree) RemoveAIModel(index int) {
	t.Remove(AIModelPath(index))
}
