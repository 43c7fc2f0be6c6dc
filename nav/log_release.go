//go:build !navlog

// nav/log_release.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import "time"

func InitNavLog(enabled bool, categories string, callsign string) {}

func NavLog(callsign string, simTime time.Time, category string, format string, args ...any) {}

func NavLogEnabled(category string) bool { return false }

func LogRoute(callsign string, simTime time.Time, wps []*Waypoint) {}
