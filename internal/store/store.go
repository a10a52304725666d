// Package store merges static and remotely-fetched events into one
// collection and derives the per-interval and per-cell event lists the grid
// is built from.
package store

import (
	"sort"
	"sync"
	"time"

	"calgrid/internal/dateutil"
	"calgrid/internal/model"
)

// Merge combines static events with remote events. Static events come
// first; a remote event whose id matches a static one replaces it in place
// (remote overrides static by id), keeping the first-seen position so that
// stable sorts stay deterministic. Remote events with new ids are appended
// in order. Duplicate ids within a single source are kept as-is.
func Merge(static, remote []model.Event) []model.Event {
	out := make([]model.Event, 0, len(static)+len(remote))
	index := make(map[string]int, len(static))

	for _, ev := range static {
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	for _, ev := range remote {
		if i, ok := index[ev.ID]; ok && ev.ID != "" {
			out[i] = ev
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EventsForInterval returns the events whose [Start, End) intersects the
// interval: ev.Start < interval.End and ev.End >= interval.Start.
func EventsForInterval(events []model.Event, iv model.DateInterval) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Start.Before(iv.End) && !ev.End.Before(iv.Start) {
			out = append(out, ev)
		}
	}
	return out
}

// EventsForDay returns the events that start on the given calendar day.
// An event spanning several days is attributed only to its start day.
func EventsForDay(events []model.Event, day time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if dateutil.SameDay(ev.Start, day) {
			out = append(out, ev)
		}
	}
	return out
}

// EventsOverlappingDay returns the events whose [Start, End) touches any
// part of the given calendar day. Callers that want multi-day spanning
// attribution use this instead of EventsForDay.
func EventsOverlappingDay(events []model.Event, day time.Time) []model.Event {
	start := dateutil.Midnight(day)
	iv := model.DateInterval{Start: start, End: dateutil.AddDays(start, 1)}
	return EventsForInterval(events, iv)
}

// SortByStart orders events ascending by start time. The sort is stable so
// ties keep their insertion order.
func SortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}

// Populate fills each grid cell with its sorted start-day events.
func Populate(cells []model.GridCell, events []model.Event) {
	for i := range cells {
		day := EventsForDay(events, cells[i].Date)
		SortByStart(day)
		cells[i].Events = day
	}
}

// SplitOverflow splits a cell's events into the inline portion and the
// overflow shown in the popup. limit <= 0 means everything overflows.
func SplitOverflow(events []model.Event, limit int) (inline, overflow []model.Event) {
	if limit < 0 {
		limit = 0
	}
	if len(events) <= limit {
		return events, nil
	}
	return events[:limit], events[limit:]
}

// Store owns the merged event collection for one engine instance. The HTTP
// layer touches it from request goroutines, so access is serialized here;
// library callers on a single goroutine pay only an uncontended lock.
type Store struct {
	mu     sync.RWMutex
	static []model.Event
	remote []model.Event
}

// New returns a Store seeded with the given static events.
func New(static []model.Event) *Store {
	s := &Store{}
	s.SetStatic(static)
	return s
}

// SetStatic replaces the static event set.
func (s *Store) SetStatic(events []model.Event) {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	s.mu.Lock()
	s.static = cp
	s.mu.Unlock()
}

// SetRemote replaces the remotely-fetched event set. Called by the sync
// controller's completion path.
func (s *Store) SetRemote(events []model.Event) {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	s.mu.Lock()
	s.remote = cp
	s.mu.Unlock()
}

// Add appends a locally created event to the static set.
func (s *Store) Add(ev model.Event) {
	s.mu.Lock()
	s.static = append(s.static, ev)
	s.mu.Unlock()
}

// All returns the merged collection: static first, remote overrides by id.
func (s *Store) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Merge(s.static, s.remote)
}

// ForInterval returns the merged events overlapping iv, sorted by start.
func (s *Store) ForInterval(iv model.DateInterval) []model.Event {
	evs := EventsForInterval(s.All(), iv)
	SortByStart(evs)
	return evs
}
