// atc/eventstream.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/mmp/aitraffic/log"
)

const (
	eventMonitorPeriod = 5 * time.Second
	// a subscriber that has not called Get for this long while events
	// are being posted is reported once
	subscriberIdle = 10 * time.Second
	longStream     = 1000
)

// EventStream is a pub/sub log of what the controllers say and do. The
// controllers post to it during their tick; subscribers drain it at their
// own pace. Events posted while nobody is subscribed are discarded.
type EventStream struct {
	mu   sync.Mutex
	subs map[*EventsSubscription]struct{}
	// events[0] is the oldest event that some subscriber has not seen
	events     []Event
	lastPost   time.Time
	warnedLong bool

	stop chan struct{}
	lg   *log.Logger
}

type EventsSubscription struct {
	es       *EventStream
	next     int // index into es.events of the first unread event
	caller   string
	lastGet  time.Time
	reported bool
}

func (s *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(slog.String("caller", s.caller), slog.Int("next", s.next),
		slog.Time("last_get", s.lastGet))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subs:     make(map[*EventsSubscription]struct{}),
		lastPost: time.Now(),
		stop:     make(chan struct{}),
		lg:       lg,
	}
	go es.monitor(es.stop)
	return es
}

// Subscribe returns a subscription that sees the events posted after it
// is made.
func (es *EventStream) Subscribe() *EventsSubscription {
	sub := &EventsSubscription{es: es, lastGet: time.Now()}
	if _, file, line, ok := runtime.Caller(1); ok {
		sub.caller = filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	es.mu.Lock()
	sub.next = len(es.events)
	es.subs[sub] = struct{}{}
	es.mu.Unlock()
	return sub
}

func (s *EventsSubscription) Unsubscribe() {
	if es := s.es; es != nil {
		es.mu.Lock()
		delete(es.subs, s)
		es.mu.Unlock()
		s.es = nil
	}
}

// Post appends an event for the current subscribers. A nil stream
// accepts and drops everything.
func (es *EventStream) Post(event Event) {
	if es == nil {
		return
	}
	es.lg.Debug("event", slog.Any("event", event))

	es.mu.Lock()
	defer es.mu.Unlock()
	if len(es.subs) == 0 {
		return
	}
	es.events = append(es.events, event)
	es.lastPost = time.Now()
}

// Get returns the events posted since the subscription's previous Get.
func (s *EventsSubscription) Get() []Event {
	es := s.es
	if es == nil {
		return nil
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	ev := slices.Clone(es.events[s.next:])
	s.next, s.lastGet, s.reported = len(es.events), time.Now(), false
	return ev
}

// Destroy stops the monitor goroutine and drops all subscribers.
func (es *EventStream) Destroy() {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.stop != nil {
		close(es.stop)
		es.stop = nil
	}
	clear(es.subs)
}

func (es *EventStream) monitor(stop <-chan struct{}) {
	t := time.NewTicker(eventMonitorPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			es.mu.Lock()
			es.compact()
			es.checkSubscribers()
			es.mu.Unlock()
		}
	}
}

// checkSubscribers logs a growing backlog and subscribers that have
// stopped reading. es.mu must be held.
func (es *EventStream) checkSubscribers() {
	if len(es.events) > longStream && !es.warnedLong {
		es.warnedLong = true
		es.lg.Warn("event backlog", slog.Int("length", len(es.events)),
			log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(es.subs))))
	}
	// Nothing is posted while the traffic is paused; idle readers are
	// only a problem when there is something to read.
	if time.Since(es.lastPost) >= eventMonitorPeriod {
		return
	}
	for sub := range es.subs {
		if d := time.Since(sub.lastGet); d > subscriberIdle && !sub.reported {
			sub.reported = true
			es.lg.Warn("idle event subscriber", slog.Duration("idle", d), slog.Any("subscriber", sub))
		}
	}
}

// compact discards the events every subscriber has read once they take
// up more than half of the slice. es.mu must be held.
func (es *EventStream) compact() {
	read := len(es.events)
	for sub := range es.subs {
		read = min(read, sub.next)
	}
	if read <= cap(es.events)/2 {
		return
	}

	n := copy(es.events, es.events[read:])
	clear(es.events[n:])
	es.events = es.events[:n]
	for sub := range es.subs {
		sub.next -= read
	}
	es.warnedLong = false
}

func (es *EventStream) LogValue() slog.Value {
	es.mu.Lock()
	defer es.mu.Unlock()

	attrs := []slog.Attr{slog.Int("len", len(es.events))}
	if n := len(es.events); n > 0 {
		attrs = append(attrs, slog.Any("last", es.events[n-1]))
	}
	attrs = append(attrs, log.AnyPointerSlice("subscriptions", slices.Collect(maps.Keys(es.subs))))
	return slog.GroupValue(attrs...)
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	RadioTransmissionEvent EventType = iota
	HandoverEvent
	PushbackApprovedEvent
	CircularWaitEvent
	SignOffEvent
	NumEventTypes
)

func (t EventType) String() string {
	return [...]string{"RadioTransmission", "Handover", "PushbackApproved", "CircularWait",
		"SignOff"}[t]
}

type Event struct {
	Type           EventType
	Callsign       string
	AircraftID     AircraftID
	FromController string
	ToController   string
	Message        MessageKind // radio transmissions only
	Direction      Direction   // radio transmissions only
	Text           string
	Time           time.Time
}

func (e Event) String() string {
	if e.Type == RadioTransmissionEvent {
		return fmt.Sprintf("%s %s: %q (%s %s)", e.Type, e.Callsign, e.Text, e.Message, e.Direction)
	}
	return fmt.Sprintf("%s %s: %q->%q %s", e.Type, e.Callsign, e.FromController, e.ToController, e.Text)
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", e.Type.String())}
	if e.Callsign != "" {
		attrs = append(attrs, slog.String("callsign", e.Callsign))
	}
	if e.FromController != "" {
		attrs = append(attrs, slog.String("from_controller", e.FromController))
	}
	if e.ToController != "" {
		attrs = append(attrs, slog.String("to_controller", e.ToController))
	}
	if e.Type == RadioTransmissionEvent {
		attrs = append(attrs, slog.String("message", e.Message.String()),
			slog.String("direction", e.Direction.String()))
	}
	if e.Text != "" {
		attrs = append(attrs, slog.String("text", e.Text))
	}
	return slog.GroupValue(attrs...)
}
