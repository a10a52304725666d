package model

import (
	"fmt"
	"strings"
	"time"
)

// Event is the canonical unit of calendar data. Events are value types:
// updates produce a new Event, nothing mutates one in place.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// Start / End are absolute instants; invariant Start <= End.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Color is a display hint passed through untouched; the engine never
	// reads it.
	Color string `json:"color,omitempty"`

	// Source records which feed produced the event ("static", "remote",
	// or an ICS source id). Useful for logging and merge decisions.
	Source string `json:"source,omitempty"`
}

// ViewMode selects the granularity of the calendar grid.
type ViewMode int

const (
	ViewMonth ViewMode = iota
	ViewWeek
	ViewDay
)

func (m ViewMode) String() string {
	switch m {
	case ViewMonth:
		return "month"
	case ViewWeek:
		return "week"
	case ViewDay:
		return "day"
	default:
		return fmt.Sprintf("viewmode(%d)", int(m))
	}
}

// ParseViewMode maps a string ("month", "week", "day") to a ViewMode.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month":
		return ViewMonth, nil
	case "week":
		return ViewWeek, nil
	case "day":
		return ViewDay, nil
	default:
		return ViewMonth, fmt.Errorf("unknown view mode %q", s)
	}
}

// WeekStart controls which weekday opens the week in calendar views.
type WeekStart int

const (
	WeekStartMonday WeekStart = iota
	WeekStartSunday
)

func (w WeekStart) String() string {
	if w == WeekStartSunday {
		return "sunday"
	}
	return "monday"
}

// ParseWeekStart maps a config string to a WeekStart. Unknown values fall
// back to monday to avoid surprising layouts.
func ParseWeekStart(s string) WeekStart {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return WeekStartSunday
	}
	return WeekStartMonday
}

// DateInterval is a half-open range [Start, End) of calendar days.
// Both endpoints are aligned to local midnight and End > Start.
type DateInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days covered by the interval.
func (iv DateInterval) Days() int {
	n := 0
	for d := iv.Start; d.Before(iv.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Contains reports whether the instant t falls inside [Start, End).
func (iv DateInterval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether two half-open intervals intersect.
func (iv DateInterval) Overlaps(other DateInterval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// GridCell is one calendar day slot in the current view.
type GridCell struct {
	Date time.Time `json:"date"`

	// InMonth is true when the cell's date belongs to the displayed month.
	// Only meaningful in month view; week/day cells always set it.
	InMonth bool `json:"inMonth"`

	Events []Event `json:"events"`
}

// FetchState describes where the remote sync controller is in its
// Idle -> Loading -> {Ready, Failed} cycle.
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchReady
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchLoading:
		return "loading"
	case FetchReady:
		return "ready"
	case FetchFailed:
		return "failed"
	default:
		return fmt.Sprintf("fetchstate(%d)", int(s))
	}
}

// FetchStatus is a snapshot of the controller state plus the failure
// message, if any.
type FetchStatus struct {
	State FetchState `json:"state"`
	Err   string     `json:"error,omitempty"`
}

// OverflowSelection identifies which day's overflow popup is open and the
// screen anchor it should be positioned against.
type OverflowSelection struct {
	DayKey  string `json:"dayKey"`
	AnchorX int    `json:"anchorX"`
	AnchorY int    `json:"anchorY"`
}
