// util/error.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"fmt"
	"strings"

	"github.com/mmp/aitraffic/log"
)

// ErrorLogger collects the problems found while reading input files so
// that reading can go on past them. Each message is prefixed with the
// current Push context, e.g. "timetable.conf / line 12".
type ErrorLogger struct {
	where  []string
	errors []string
}

func (e *ErrorLogger) Push(s string) { e.where = append(e.where, s) }
func (e *ErrorLogger) Pop()          { e.where = e.where[:len(e.where)-1] }

func (e *ErrorLogger) add(msg string) {
	e.errors = append(e.errors, strings.Join(e.where, " / ")+": "+msg)
}

func (e *ErrorLogger) ErrorString(s string, args ...any) { e.add(fmt.Sprintf(s, args...)) }
func (e *ErrorLogger) Error(err error)                   { e.add(err.Error()) }

func (e *ErrorLogger) HaveErrors() bool { return len(e.errors) > 0 }
func (e *ErrorLogger) Errors() []string { return e.errors }

// LogErrors reports the collected errors as warnings.
func (e *ErrorLogger) LogErrors(lg *log.Logger) {
	for _, msg := range e.errors {
		lg.Warn(msg)
	}
}
