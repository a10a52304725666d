package nav

import (
	"testing"
	"time"

	"calgrid/internal/model"
	"calgrid/internal/view"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func fixedResolver(now time.Time) *view.Resolver {
	return &view.Resolver{
		WeekStart: model.WeekStartMonday,
		Now:       func() time.Time { return now },
	}
}

func TestPrevNextRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mode   model.ViewMode
		anchor time.Time
	}{
		{"week", model.ViewWeek, date(2020, time.October, 7)},
		{"day", model.ViewDay, date(2020, time.October, 5)},
		{"month from the 1st", model.ViewMonth, date(2020, time.October, 1)},
		{"day across month boundary", model.ViewDay, date(2020, time.October, 31)},
		{"week across year boundary", model.ViewWeek, date(2020, time.December, 30)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMachine(fixedResolver(date(2020, time.October, 5)), State{Mode: tt.mode, Anchor: tt.anchor})
			m.Apply(Next{})
			got, _ := m.Apply(Prev{})
			if !got.Anchor.Equal(tt.anchor) {
				t.Errorf("Next then Prev anchor = %v, want %v", got.Anchor, tt.anchor)
			}
		})
	}
}

func TestMonthStepClampsToFirst(t *testing.T) {
	t.Parallel()
	// Documented non-invertibility for day != 1 anchors in month view: the
	// machine clamps to the 1st, so the round trip lands on Oct 1, not 31.
	m := NewMachine(fixedResolver(date(2020, time.October, 5)), State{Mode: model.ViewMonth, Anchor: date(2020, time.October, 31)})

	got, _ := m.Apply(Next{})
	if !got.Anchor.Equal(date(2020, time.November, 1)) {
		t.Errorf("Next from Oct 31 = %v, want Nov 1", got.Anchor)
	}
	got, _ = m.Apply(Prev{})
	if !got.Anchor.Equal(date(2020, time.October, 1)) {
		t.Errorf("Prev back = %v, want Oct 1", got.Anchor)
	}

	// Jan 31 stepping forward must land in February, not normalize to March.
	m = NewMachine(fixedResolver(date(2020, time.October, 5)), State{Mode: model.ViewMonth, Anchor: date(2020, time.January, 31)})
	got, _ = m.Apply(Next{})
	if got.Anchor.Month() != time.February {
		t.Errorf("Next from Jan 31 landed in %v, want February", got.Anchor.Month())
	}
}

func TestToday(t *testing.T) {
	t.Parallel()
	now := time.Date(2020, time.October, 5, 15, 30, 0, 0, time.Local)
	m := NewMachine(fixedResolver(now), State{Mode: model.ViewWeek, Anchor: date(1999, time.January, 1)})

	got, _ := m.Apply(Today{})
	if !got.Anchor.Equal(date(2020, time.October, 5)) {
		t.Errorf("Today anchor = %v, want midnight 2020-10-05", got.Anchor)
	}
	if got.Mode != model.ViewWeek {
		t.Errorf("Today changed mode to %v", got.Mode)
	}
}

func TestSetViewKeepsAnchor(t *testing.T) {
	t.Parallel()
	anchor := date(2020, time.October, 5)
	m := NewMachine(fixedResolver(anchor), State{Mode: model.ViewMonth, Anchor: anchor})

	got, effects := m.Apply(SetView{Mode: model.ViewDay})
	if got.Mode != model.ViewDay || !got.Anchor.Equal(anchor) {
		t.Errorf("SetView = %+v, want day view with unchanged anchor", got)
	}
	if len(effects) == 0 {
		t.Fatal("SetView emitted no effects")
	}
	recompute, ok := effects[0].(EffectRecomputeGrid)
	if !ok {
		t.Fatalf("first effect = %T, want EffectRecomputeGrid", effects[0])
	}
	if recompute.Range.Days() != 1 {
		t.Errorf("day view range spans %d days, want 1", recompute.Range.Days())
	}
}

func TestRefetchEffectFollowsPolicy(t *testing.T) {
	t.Parallel()
	m := NewMachine(fixedResolver(date(2020, time.October, 5)), State{Mode: model.ViewMonth, Anchor: date(2020, time.October, 1)})

	_, effects := m.Apply(Next{})
	if len(effects) != 1 {
		t.Errorf("without a policy: %d effects, want recompute only", len(effects))
	}

	refetch := true
	m.SetRefetchPolicy(func() bool { return refetch })
	_, effects = m.Apply(Next{})
	if len(effects) != 2 {
		t.Fatalf("with policy on: %d effects, want 2", len(effects))
	}
	if _, ok := effects[1].(EffectRefetch); !ok {
		t.Errorf("second effect = %T, want EffectRefetch", effects[1])
	}

	refetch = false
	_, effects = m.Apply(Prev{})
	if len(effects) != 1 {
		t.Errorf("with policy off: %d effects, want 1", len(effects))
	}
}

func TestObserversSeeEveryTransition(t *testing.T) {
	t.Parallel()
	m := NewMachine(fixedResolver(date(2020, time.October, 5)), State{Mode: model.ViewWeek, Anchor: date(2020, time.October, 5)})

	var seen []model.DateInterval
	m.Observe(func(_ State, iv model.DateInterval) {
		seen = append(seen, iv)
	})

	m.Apply(Next{})
	m.Apply(SetAnchor{Date: date(2020, time.December, 25)})
	m.Apply(SetView{Mode: model.ViewMonth})

	if len(seen) != 3 {
		t.Fatalf("observer saw %d transitions, want 3", len(seen))
	}
	for i, iv := range seen {
		if !iv.End.After(iv.Start) {
			t.Errorf("observed range %d is empty: %+v", i, iv)
		}
	}
}

func TestScenarioMonthToWeekToDay(t *testing.T) {
	t.Parallel()
	// Anchor 2020-10-05 in month view; switch to week, then pick the day.
	r := fixedResolver(date(2020, time.October, 5))
	m := NewMachine(r, State{Mode: model.ViewMonth, Anchor: date(2020, time.October, 5)})

	m.Apply(SetView{Mode: model.ViewWeek})
	st, _ := m.Apply(SetView{Mode: model.ViewDay})

	grid := r.Grid(st.Mode, st.Anchor)
	if len(grid) != 1 {
		t.Fatalf("day grid has %d cells, want 1", len(grid))
	}
	if !grid[0].Date.Equal(date(2020, time.October, 5)) {
		t.Errorf("day cell = %v, want 2020-10-05", grid[0].Date)
	}
	if title := r.Title(st.Mode, st.Anchor); title != "October 5, 2020" {
		t.Errorf("header = %q, want \"October 5, 2020\"", title)
	}
}
