// nav/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package nav

import "errors"

var (
	ErrNoAirport            = errors.New("No airport")
	ErrNoPerformanceData    = errors.New("No performance data")
	ErrNoPushForwardSegment = errors.New("No segment to push forward onto")
	ErrPlanComplete         = errors.New("Flight plan is complete")
)
