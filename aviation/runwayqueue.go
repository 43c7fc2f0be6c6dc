// aviation/runwayqueue.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"slices"
	"time"
)

const (
	DepartureSeparation      = 60 * time.Second
	HeavyDepartureSeparation = 90 * time.Second
)

type runwayQueueEntry struct {
	ID  int
	ETA time.Time
}

// RunwayQueue orders the aircraft waiting for one runway by their
// estimated time of arrival at it; equal times keep insertion order.
type RunwayQueue struct {
	Runway string

	entries   []runwayQueueEntry
	lastUse   time.Time
	lastHeavy bool
}

// Add inserts id, or repositions it if it is already queued.
func (q *RunwayQueue) Add(id int, eta time.Time) {
	q.Remove(id)
	i := len(q.entries)
	for i > 0 && q.entries[i-1].ETA.After(eta) {
		i--
	}
	q.entries = slices.Insert(q.entries, i, runwayQueueEntry{ID: id, ETA: eta})
}

func (q *RunwayQueue) Remove(id int) bool {
	n := len(q.entries)
	q.entries = slices.DeleteFunc(q.entries, func(e runwayQueueEntry) bool { return e.ID == id })
	return len(q.entries) != n
}

func (q *RunwayQueue) Front() (int, bool) {
	if len(q.entries) == 0 {
		return 0, false
	}
	return q.entries[0].ID, true
}

func (q *RunwayQueue) Len() int {
	return len(q.entries)
}

func (q *RunwayQueue) Contains(id int) bool {
	return slices.ContainsFunc(q.entries, func(e runwayQueueEntry) bool { return e.ID == id })
}

func (q *RunwayQueue) IDs() []int {
	ids := make([]int, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.ID
	}
	return ids
}

// MarkUsed records a departure at t.
func (q *RunwayQueue) MarkUsed(t time.Time, heavy bool) {
	q.lastUse, q.lastHeavy = t, heavy
}

// IsClear reports whether enough time has passed since the last
// departure for the next one to be cleared.
func (q *RunwayQueue) IsClear(now time.Time) bool {
	if q.lastUse.IsZero() {
		return true
	}
	sep := DepartureSeparation
	if q.lastHeavy {
		sep = HeavyDepartureSeparation
	}
	return now.Sub(q.lastUse) >= sep
}

// RunwayQueues holds the queues of one airport, keyed by runway.
type RunwayQueues map[string]*RunwayQueue

func (rq RunwayQueues) Get(rwy string) *RunwayQueue {
	q, ok := rq[rwy]
	if !ok {
		q = &RunwayQueue{Runway: rwy}
		rq[rwy] = q
	}
	return q
}

// RemoveAll drops id from every queue.
func (rq RunwayQueues) RemoveAll(id int) {
	for _, q := range rq {
		q.Remove(id)
	}
}
