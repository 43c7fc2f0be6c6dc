// nav/log.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

// Trace categories for NavLog; builds without the navlog tag discard
// everything.
const (
	NavLogLeg      = "leg"      // leg changes in the flight plan
	NavLogWaypoint = "waypoint" // waypoints passed
	NavLogTrigger  = "trigger"  // waypoint triggers fired
	NavLogSpeed    = "speed"    // speed targets
	NavLogHold     = "hold"     // holding short and waiting for clearances
	NavLogRoute    = "route"    // the full route after it is built or changed
)
