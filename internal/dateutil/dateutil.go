// Package dateutil holds the pure date arithmetic the calendar views are
// built on. Everything here is deterministic and operates on local calendar
// days, not fixed 24h offsets, so DST transitions do not shift cells.
package dateutil

import (
	"fmt"
	"time"

	"calgrid/internal/model"
)

// DateKeyLayout is the lossless local-date key format used to identify
// grid cells and popup selections.
const DateKeyLayout = "2006-01-02"

// Midnight truncates t to midnight in its own location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days. Month and year rollover are handled
// by AddDate, which keeps the wall clock fixed across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfWeek returns the midnight-aligned first day of the week
// containing t, per the given week start.
func StartOfWeek(t time.Time, ws model.WeekStart) time.Time {
	day := Midnight(t)
	wd := int(day.Weekday()) // Sunday = 0
	var back int
	if ws == model.WeekStartSunday {
		back = wd
	} else {
		back = (wd + 6) % 7
	}
	return AddDays(day, -back)
}

// FormatDateKey renders t's local date as YYYY-MM-DD.
func FormatDateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key back into a local midnight date.
// The round trip FormatDateKey(ParseDateKey(k)) == k holds for any valid
// key; invalid keys return an error so callers can treat the cell as
// absent instead of crashing.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DateKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// ISOWeek returns the ISO 8601 week number for t (Thursday-anchored).
func ISOWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FirstOfMonth returns midnight on the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
