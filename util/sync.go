// util/sync.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"log/slog"
	gomath "math"
	"runtime"
	"sync"
	"time"

	"github.com/mmp/aitraffic/log"

	"github.com/shirou/gopsutil/cpu"
)

///////////////////////////////////////////////////////////////////////////
// LoggingMutex

const (
	mutexStallTimeout = 10 * time.Second
	mutexSlow         = time.Second
)

// held tracks the LoggingMutexes that are currently locked, so that a
// stalled Lock can report how many there are.
var held struct {
	sync.Mutex
	m map[*LoggingMutex]struct{}
}

// LoggingMutex is a sync.Mutex that logs slow acquisitions and long hold
// times along with the stack that took it.
type LoggingMutex struct {
	sync.Mutex
	acq      time.Time
	acqStack []log.StackFrame
}

func (l *LoggingMutex) Lock(lg *log.Logger) {
	start := time.Now()
	if !l.Mutex.TryLock() {
		l.lockSlow(lg)
	}

	held.Lock()
	if held.m == nil {
		held.m = make(map[*LoggingMutex]struct{})
	}
	held.m[l] = struct{}{}
	held.Unlock()

	l.acq = time.Now()
	l.acqStack = log.Callstack(l.acqStack)
	if w := l.acq.Sub(start); w > mutexSlow {
		lg.Warn("slow mutex acquisition", slog.Any("mutex", l), slog.Duration("wait", w))
	}
}

// lockSlow blocks until the mutex is acquired, reporting the state of the
// process if that takes longer than mutexStallTimeout.
func (l *LoggingMutex) lockSlow(lg *log.Logger) {
	locked := make(chan struct{})
	go func() {
		l.Mutex.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return
	case <-time.After(mutexStallTimeout):
	}

	held.Lock()
	n := len(held.m)
	held.Unlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var cpuPct float64
	if pct, err := cpu.Percent(time.Second, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	lg.Error("mutex stalled", slog.Any("mutex", l), slog.Int("held_mutexes", n),
		slog.Int("cpu_pct", int(gomath.Round(cpuPct))), slog.Uint64("alloc_mb", ms.Alloc>>20),
		slog.Uint64("sys_mb", ms.Sys>>20), slog.Int("goroutines", runtime.NumGoroutine()))

	<-locked
}

func (l *LoggingMutex) Unlock(lg *log.Logger) {
	held.Lock()
	if _, ok := held.m[l]; !ok {
		lg.Error("unlock of a mutex that is not held", slog.Any("mutex", l))
	}
	delete(held.m, l)
	held.Unlock()

	if d := time.Since(l.acq); d > mutexSlow {
		lg.Warn("mutex held too long", slog.Any("mutex", l), slog.Duration("held", d))
	}
	l.acq, l.acqStack = time.Time{}, l.acqStack[:0]
	l.Mutex.Unlock()
}

func (l *LoggingMutex) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("acq", l.acq),
		slog.Any("acq_stack", l.acqStack))
}

///////////////////////////////////////////////////////////////////////////
// Handoff

// Handoff moves a single value from a producer goroutine to a consumer
// exactly once. The producer calls Deliver when it is finished; the
// consumer polls Take each tick. After Abandon, delivered values are
// dropped and Take never succeeds.
type Handoff[T any] struct {
	mu        LoggingMutex
	done      bool
	taken     bool
	abandoned bool
	value     T
}

func (h *Handoff[T]) Deliver(lg *log.Logger, v T) {
	h.mu.Lock(lg)
	defer h.mu.Unlock(lg)

	if h.done {
		lg.Warn("Handoff delivered twice; dropping second value")
		return
	}
	h.done = true
	if !h.abandoned {
		h.value = v
	}
}

// Take returns the delivered value and true the first time it is called
// after Deliver; otherwise it returns false.
func (h *Handoff[T]) Take(lg *log.Logger) (T, bool) {
	h.mu.Lock(lg)
	defer h.mu.Unlock(lg)

	var zero T
	if !h.done || h.taken || h.abandoned {
		return zero, false
	}
	h.taken = true
	v := h.value
	h.value = zero
	return v, true
}

func (h *Handoff[T]) Abandon(lg *log.Logger) {
	h.mu.Lock(lg)
	defer h.mu.Unlock(lg)

	h.abandoned = true
	var zero T
	h.value = zero
}

func (h *Handoff[T]) Abandoned(lg *log.Logger) bool {
	h.mu.Lock(lg)
	defer h.mu.Unlock(lg)
	return h.abandoned
}

func (h *Handoff[T]) Done(lg *log.Logger) bool {
	h.mu.Lock(lg)
	defer h.mu.Unlock(lg)
	return h.done
}
