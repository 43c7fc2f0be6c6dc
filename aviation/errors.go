// aviation/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import "errors"

var (
	ErrNavCacheLoading         = errors.New("Navigation cache is still loading")
	ErrNoParkingAvailable      = errors.New("No parking available")
	ErrNoRoute                 = errors.New("No route found in ground network")
	ErrNoRunway                = errors.New("No runway available")
	ErrUnknownAirport          = errors.New("Unknown airport")
	ErrUnknownNode             = errors.New("Unknown taxi node")
	ErrUnknownPerformanceClass = errors.New("Unknown aircraft performance class")
	ErrUnknownRunway           = errors.New("Unknown runway")
)
