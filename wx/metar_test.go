// wx/metar_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package wx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseMETAR(t *testing.T) {
	ref := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		raw      string
		dir      int // -1: variable
		speed    int
		gust     int // 0: none
		expected time.Time
	}{
		{"KSFO 011256Z 28012G20KT 10SM FEW008 17/12 A2990", 280, 12, 20,
			time.Date(2025, 6, 1, 12, 56, 0, 0, time.UTC)},
		{"METAR KJFK 021751Z AUTO VRB03KT 10SM CLR 25/10 A3001", -1, 3, 0,
			time.Date(2025, 6, 2, 17, 51, 0, 0, time.UTC)},
		{"EGLL 020950Z 24008KT 9999 SCT030 18/09 Q1017", 240, 8, 0,
			time.Date(2025, 6, 2, 9, 50, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			m, err := ParseMETAR(tc.raw, ref)
			if err != nil {
				t.Fatal(err)
			}
			if !m.Time.Equal(tc.expected) {
				t.Errorf("time: got %v, expected %v", m.Time, tc.expected)
			}
			if tc.dir == -1 {
				if m.WindDir != nil || m.Wind() != nil {
					t.Errorf("expected variable wind")
				}
			} else if m.WindDir == nil || *m.WindDir != tc.dir {
				t.Errorf("wind direction: got %v", m.WindDir)
			} else if w := m.Wind(); w.Direction != float64(tc.dir) || w.Speed != float64(tc.speed) {
				t.Errorf("wind: %+v", w)
			}
			if m.WindSpeed != tc.speed {
				t.Errorf("wind speed: got %d", m.WindSpeed)
			}
			if (tc.gust == 0) != (m.WindGust == nil) || (m.WindGust != nil && *m.WindGust != tc.gust) {
				t.Errorf("gust: got %v", m.WindGust)
			}
		})
	}

	for _, bad := range []string{"", "KSFO", "KSFO 0112Z 28012KT", "KSFO 011256Z 280XXKT"} {
		if _, err := ParseMETAR(bad, ref); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestMETARJSON(t *testing.T) {
	var ms []METAR
	data := `[{"icaoId": "KSFO", "reportTime": "2025-06-01 12:56:00", "wdir": 280, "wspd": 12, "rawOb": "x"},
		{"icaoId": "KOAK", "reportTime": "2025-06-01 12:53:00", "wdir": "VRB", "wspd": 2}]`
	if err := json.Unmarshal([]byte(data), &ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 || ms[0].WindDir == nil || *ms[0].WindDir != 280 || ms[1].WindDir != nil {
		t.Errorf("decoded %+v", ms)
	}
	if err := json.Unmarshal([]byte(`[{"icaoId": "X", "wdir": "NNE"}]`), &ms); err == nil {
		t.Errorf("expected error for bad wind direction")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	ref := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	newer, _ := ParseMETAR("KSFO 021256Z 28012KT", ref)
	older, _ := ParseMETAR("KSFO 021156Z 31005KT", ref)

	c.Add(newer)
	c.Add(older)
	if m, ok := c.Get("ksfo"); !ok || *m.WindDir != 280 {
		t.Errorf("older report replaced newer: %+v", m)
	}
	if !c.Ready("KSFO") || c.Ready("KJFK") {
		t.Errorf("readiness")
	}

	dir := t.TempDir()
	fn := filepath.Join(dir, "metar.txt")
	if err := os.WriteFile(fn, []byte("# comment\nKJFK 021751Z 18010KT\nbogus\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err := c.LoadFile(fn, ref, nil)
	if err != nil || n != 1 {
		t.Errorf("LoadFile: %d %v", n, err)
	}
	if !c.Ready("KJFK") {
		t.Errorf("KJFK not loaded")
	}
}
