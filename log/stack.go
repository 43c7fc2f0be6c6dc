// log/stack.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const maxStackFrames = 16

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) String() string {
	return f.File + ":" + strconv.Itoa(f.Line) + ":" + f.Function
}

// Callstack returns the stack of its caller, reusing fr's
// storage.
func Callstack(fr []StackFrame) []StackFrame {
	return callstack(fr, 3)
}

// callstack skips skip frames, counting runtime.Callers itself, and stops
// at main.main.
func callstack(fr []StackFrame, skip int) []StackFrame {
	var pcs [maxStackFrames]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	fr = fr[:0]
	for {
		frame, more := frames.Next()
		fn := strings.TrimPrefix(frame.Function, "github.com/mmp/aitraffic/")
		fr = append(fr, StackFrame{
			File:     filepath.Base(frame.File),
			Line:     frame.Line,
			Function: strings.TrimPrefix(fn, "main."),
		})
		if !more || frame.Function == "main.main" {
			return fr
		}
	}
}

// AnyPointerSlice logs a slice of pointers to slog.LogValuers as a group
// keyed by index.
func AnyPointerSlice[T any, PT interface {
	*T
	slog.LogValuer
}](key string, s []PT) slog.Attr {
	attrs := make([]slog.Attr, 0, len(s))
	for i, v := range s {
		k := strconv.Itoa(i)
		if v == nil {
			attrs = append(attrs, slog.String(k, "<nil>"))
		} else {
			attrs = append(attrs, slog.Any(k, v.LogValue()))
		}
	}
	return slog.Attr{Key: key, Value: slog.GroupValue(attrs...)}
}
