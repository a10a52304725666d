// Package view resolves the visible date interval and grid cells for a
// (view mode, anchor) pair.
package view

import (
	"fmt"
	"time"

	"calgrid/internal/dateutil"
	"calgrid/internal/model"
)

// MonthGridDays is the fixed size of the month grid: 6 full weeks, so the
// grid stays rectangular regardless of month length.
const MonthGridDays = 42

// Resolver computes ranges and grids. Deterministic given the same anchor,
// mode and week-start configuration; Now is injectable for tests.
type Resolver struct {
	WeekStart model.WeekStart
	Now       func() time.Time
}

// NewResolver returns a Resolver using the given week start and the real
// clock.
func NewResolver(ws model.WeekStart) *Resolver {
	return &Resolver{WeekStart: ws, Now: time.Now}
}

// Range computes the visible half-open day interval for mode and anchor.
//
//   - Month: starts at StartOfWeek(first of anchor month), spans 42 days.
//   - Week: starts at StartOfWeek(anchor), spans 7 days.
//   - Day: [midnight(anchor), midnight(anchor)+1d).
func (r *Resolver) Range(mode model.ViewMode, anchor time.Time) model.DateInterval {
	switch mode {
	case model.ViewWeek:
		start := dateutil.StartOfWeek(anchor, r.WeekStart)
		return model.DateInterval{Start: start, End: dateutil.AddDays(start, 7)}
	case model.ViewDay:
		start := dateutil.Midnight(anchor)
		return model.DateInterval{Start: start, End: dateutil.AddDays(start, 1)}
	default: // month
		start := dateutil.StartOfWeek(dateutil.FirstOfMonth(anchor), r.WeekStart)
		return model.DateInterval{Start: start, End: dateutil.AddDays(start, MonthGridDays)}
	}
}

// Grid returns the ordered day cells for mode and anchor. Cells carry dates
// only; the store populates events. In month view InMonth marks cells that
// belong to the anchor's month.
func (r *Resolver) Grid(mode model.ViewMode, anchor time.Time) []model.GridCell {
	iv := r.Range(mode, anchor)
	cells := make([]model.GridCell, 0, iv.Days())
	for d := iv.Start; d.Before(iv.End); d = dateutil.AddDays(d, 1) {
		inMonth := true
		if mode == model.ViewMonth {
			inMonth = d.Month() == anchor.Month() && d.Year() == anchor.Year()
		}
		cells = append(cells, model.GridCell{Date: d, InMonth: inMonth, Events: []model.Event{}})
	}
	return cells
}

// Title renders a locale-neutral header for mode and anchor.
func (r *Resolver) Title(mode model.ViewMode, anchor time.Time) string {
	switch mode {
	case model.ViewDay:
		return anchor.Format("January 2, 2006")
	case model.ViewWeek:
		iv := r.Range(model.ViewWeek, anchor)
		last := dateutil.AddDays(iv.End, -1)
		if iv.Start.Year() == last.Year() {
			return fmt.Sprintf("%s – %s, %d", iv.Start.Format("Jan 2"), last.Format("Jan 2"), last.Year())
		}
		return fmt.Sprintf("%s – %s", iv.Start.Format("Jan 2, 2006"), last.Format("Jan 2, 2006"))
	default:
		return anchor.Format("January 2006")
	}
}
