// sim/heuristics.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"io/fs"
	"time"

	"github.com/mmp/aitraffic/util"
)

// Heuristic is what is remembered about a schedule between runs so that
// aircraft the user tends to meet are preferred.
type Heuristic struct {
	RunCount int       `msgpack:"runs"`
	Hits     int       `msgpack:"hits"`
	LastRun  time.Time `msgpack:"last"`
}

// Heuristics maps registrations to their counters.
type Heuristics map[string]Heuristic

// LoadHeuristics reads a file written by Save; a missing file yields an
// empty set.
func LoadHeuristics(path string) (Heuristics, error) {
	h := make(Heuristics)
	if path == "" {
		return h, nil
	}
	if _, err := util.RetrieveObject(path, &h); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(Heuristics), nil
		}
		return make(Heuristics), err
	}
	return h, nil
}

func (h Heuristics) Save(path string) error {
	if path == "" {
		return nil
	}
	return util.StoreObject(path, h)
}

// Apply copies the stored counters into the schedules.
func (h Heuristics) Apply(schedules []*AISchedule) {
	for _, s := range schedules {
		if hs, ok := h[s.Registration]; ok {
			s.RunCount, s.Hits, s.LastRun = hs.RunCount, hs.Hits, hs.LastRun
		}
	}
}

// Update records the schedules' current counters.
func (h Heuristics) Update(schedules []*AISchedule) {
	for _, s := range schedules {
		h[s.Registration] = Heuristic{RunCount: s.RunCount, Hits: s.Hits, LastRun: s.LastRun}
	}
}
