// sim/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrInvalidTime       = errors.New("Invalid time")
	ErrMalformedRow      = errors.New("Malformed timetable row")
	ErrTimetableNotFound = errors.New("No timetable files found")
)
