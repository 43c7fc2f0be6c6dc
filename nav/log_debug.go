//go:build navlog

// nav/log_debug.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// navlog traces what individual aircraft do with their flight plans. It
// is compiled in with -tags navlog; aircraft are updated from a single
// goroutine but the mutex keeps output lines whole if that changes.
var navlog struct {
	mu         sync.Mutex
	w          io.Writer
	enabled    bool
	categories map[string]bool
	callsigns  []string // empty: all
}

var allNavLogCategories = []string{NavLogLeg, NavLogWaypoint, NavLogTrigger, NavLogSpeed, NavLogHold, NavLogRoute}

// InitNavLog sets which categories are traced, as a comma-separated list
// or "all", and optionally restricts tracing to a comma-separated list of
// callsigns.
func InitNavLog(enabled bool, categories string, callsign string) {
	navlog.mu.Lock()
	defer navlog.mu.Unlock()

	navlog.w = os.Stdout
	navlog.enabled = enabled
	navlog.categories = make(map[string]bool)
	navlog.callsigns = nil
	if !enabled {
		return
	}

	cats := allNavLogCategories
	if c := strings.TrimSpace(categories); c != "" && c != "all" {
		cats = strings.Split(c, ",")
	}
	for _, c := range cats {
		navlog.categories[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, cs := range strings.Split(callsign, ",") {
		if cs = strings.TrimSpace(cs); cs != "" {
			navlog.callsigns = append(navlog.callsigns, strings.ToUpper(cs))
		}
	}
}

func navLogWants(callsign, category string) bool {
	if !navlog.enabled || !navlog.categories[category] {
		return false
	}
	return len(navlog.callsigns) == 0 || slices.Contains(navlog.callsigns, strings.ToUpper(callsign))
}

func NavLog(callsign string, simTime time.Time, category string, format string, args ...interface{}) {
	navlog.mu.Lock()
	defer navlog.mu.Unlock()

	if navLogWants(callsign, category) {
		fmt.Fprintf(navlog.w, "%s %-8s %-8s %s\n", simTime.Format("15:04:05"), callsign, category,
			fmt.Sprintf(format, args...))
	}
}

func NavLogEnabled(category string) bool {
	navlog.mu.Lock()
	defer navlog.mu.Unlock()
	return navlog.enabled && navlog.categories[category]
}

// LogRoute traces the waypoints remaining in a plan.
func LogRoute(callsign string, simTime time.Time, wps []*Waypoint) {
	route := WaypointsString(wps)
	if route == "" {
		route = "(empty)"
	}
	NavLog(callsign, simTime, NavLogRoute, "%d waypoints: %s", len(wps), route)
}
