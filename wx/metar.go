// wx/metar.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package wx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/aitraffic/aviation"
)

// METAR is the part of an observation the traffic system uses: the
// station, when it was observed, and the surface wind.
type METAR struct {
	ICAO      string
	Time      time.Time
	WindDir   *int // nil for variable winds
	WindSpeed int
	WindGust  *int
	Raw       string
}

// metarJSON is one element of an aviationweather.gov METAR JSON array.
type metarJSON struct {
	ICAO       string `json:"icaoId"`
	ReportTime string `json:"reportTime"`
	WindDir    any    `json:"wdir"` // a number, "VRB", or absent
	WindSpeed  int    `json:"wspd"`
	WindGust   *int   `json:"wgst"`
	Raw        string `json:"rawOb"`
}

func (m *METAR) UnmarshalJSON(data []byte) error {
	var j metarJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*m = METAR{ICAO: j.ICAO, WindSpeed: j.WindSpeed, WindGust: j.WindGust, Raw: j.Raw}

	switch dir := j.WindDir.(type) {
	case nil:
	case string:
		if dir != "VRB" {
			return fmt.Errorf("%s: wind direction %q", j.ICAO, dir)
		}
	case float64:
		if dir < 0 || dir > 360 {
			return fmt.Errorf("%s: wind direction %v out of range", j.ICAO, dir)
		}
		d := int(dir)
		m.WindDir = &d
	default:
		return fmt.Errorf("%s: wind direction %v has type %T", j.ICAO, dir, dir)
	}

	for _, layout := range []string{time.DateTime, "2006-01-02T15:04:05.999Z"} {
		if t, err := time.Parse(layout, j.ReportTime); err == nil {
			m.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("%s: report time %q", j.ICAO, j.ReportTime)
}

// ParseMETAR decodes the station, observation time and wind group of a
// raw report such as "KSFO 011256Z 28012G20KT 10SM FEW008 17/12 A2990".
// The observation day is resolved against the month of ref.
func ParseMETAR(raw string, ref time.Time) (METAR, error) {
	f := strings.Fields(raw)
	if len(f) > 0 && (f[0] == "METAR" || f[0] == "SPECI") {
		f = f[1:]
	}
	if len(f) < 3 {
		return METAR{}, fmt.Errorf("%q: too short", raw)
	}
	m := METAR{ICAO: f[0], Raw: raw}

	ts := f[1]
	if len(ts) != 7 || ts[6] != 'Z' {
		return METAR{}, fmt.Errorf("%q: malformed observation time", ts)
	}
	day, err1 := strconv.Atoi(ts[0:2])
	hour, err2 := strconv.Atoi(ts[2:4])
	minute, err3 := strconv.Atoi(ts[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return METAR{}, fmt.Errorf("%q: malformed observation time", ts)
	}
	ref = ref.UTC()
	m.Time = time.Date(ref.Year(), ref.Month(), day, hour, minute, 0, 0, time.UTC)

	for _, w := range f[2:] {
		if w == "AUTO" || w == "COR" {
			continue
		}
		if !strings.HasSuffix(w, "KT") || len(w) < 7 {
			return METAR{}, fmt.Errorf("%q: malformed wind", w)
		}
		w = strings.TrimSuffix(w, "KT")
		if dir := w[:3]; dir != "VRB" {
			d, err := strconv.Atoi(dir)
			if err != nil {
				return METAR{}, fmt.Errorf("%q: malformed wind direction", dir)
			}
			m.WindDir = &d
		}
		spd, gust, hasGust := strings.Cut(w[3:], "G")
		s, err := strconv.Atoi(spd)
		if err != nil {
			return METAR{}, fmt.Errorf("%q: malformed wind speed", spd)
		}
		m.WindSpeed = s
		if hasGust {
			g, err := strconv.Atoi(gust)
			if err != nil {
				return METAR{}, fmt.Errorf("%q: malformed gust", gust)
			}
			m.WindGust = &g
		}
		break
	}
	return m, nil
}

// Wind returns the surface wind, or nil when it is variable.
func (m METAR) Wind() *aviation.Wind {
	if m.WindDir == nil {
		return nil
	}
	return &aviation.Wind{Direction: float64(*m.WindDir), Speed: float64(m.WindSpeed)}
}
