// Package nav owns the current view mode and anchor date as an explicit
// state machine. Transitions are pure: Apply returns the new state plus
// the effects the caller should run, so the machine is testable without
// any rendering or network environment.
package nav

import (
	"time"

	"calgrid/internal/dateutil"
	"calgrid/internal/model"
	"calgrid/internal/view"
)

// State is the (viewMode, anchor) pair that determines what is visible.
type State struct {
	Mode   model.ViewMode
	Anchor time.Time
}

// Transition is a navigation input. All transitions are total: none is
// ever rejected.
type Transition interface{ isTransition() }

type (
	// Prev moves the anchor one period back.
	Prev struct{}
	// Next moves the anchor one period forward.
	Next struct{}
	// Today resets the anchor to the current date.
	Today struct{}
	// SetView switches the view mode, leaving the anchor unchanged.
	SetView struct{ Mode model.ViewMode }
	// SetAnchor jumps to an explicit date, e.g. from a date pick.
	SetAnchor struct{ Date time.Time }
)

func (Prev) isTransition()      {}
func (Next) isTransition()      {}
func (Today) isTransition()     {}
func (SetView) isTransition()   {}
func (SetAnchor) isTransition() {}

// Effect is work the caller should perform after a transition.
type Effect interface{ isEffect() }

// EffectRecomputeGrid tells the caller the visible range changed and the
// grid must be rebuilt. Emitted by every transition.
type EffectRecomputeGrid struct {
	Mode  model.ViewMode
	Range model.DateInterval
}

// EffectRefetch tells the caller to refresh remote events for the new
// range. Emitted when the sync policy asks for it.
type EffectRefetch struct {
	Range model.DateInterval
}

func (EffectRecomputeGrid) isEffect() {}
func (EffectRefetch) isEffect()       {}

// Machine applies transitions and notifies observers. The resolver
// supplies range computation; now supplies the Today target and is
// injectable for tests.
type Machine struct {
	resolver *view.Resolver
	state    State
	now      func() time.Time

	// shouldRefetch is consulted after each transition; nil means never.
	shouldRefetch func() bool

	observers []func(State, model.DateInterval)
}

// NewMachine builds a Machine starting at the given state.
func NewMachine(r *view.Resolver, initial State) *Machine {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{resolver: r, state: initial, now: now}
}

// SetRefetchPolicy wires the sync controller's refetch decision in.
func (m *Machine) SetRefetchPolicy(f func() bool) {
	m.shouldRefetch = f
}

// Observe registers a callback invoked with the new state and range after
// every transition.
func (m *Machine) Observe(f func(State, model.DateInterval)) {
	m.observers = append(m.observers, f)
}

// State returns the current (mode, anchor) pair.
func (m *Machine) State() State {
	return m.state
}

// Range returns the visible interval for the current state.
func (m *Machine) Range() model.DateInterval {
	return m.resolver.Range(m.state.Mode, m.state.Anchor)
}

// Apply runs one transition, stores the new state, notifies observers,
// and returns the effects to run.
func (m *Machine) Apply(t Transition) (State, []Effect) {
	next := apply(m.state, t, m.now)
	m.state = next

	iv := m.resolver.Range(next.Mode, next.Anchor)
	effects := []Effect{EffectRecomputeGrid{Mode: next.Mode, Range: iv}}
	if m.shouldRefetch != nil && m.shouldRefetch() {
		effects = append(effects, EffectRefetch{Range: iv})
	}

	for _, obs := range m.observers {
		obs(next, iv)
	}
	return next, effects
}

// apply is the pure transition function over State.
//
// Prev/Next step by one month in month view (anchor clamped to the 1st so
// the step is invertible), by 7 days in week view, and by 1 day in day
// view. Today resets the anchor to the current date in any view.
func apply(s State, t Transition, now func() time.Time) State {
	switch tr := t.(type) {
	case Prev:
		return State{Mode: s.Mode, Anchor: step(s.Mode, s.Anchor, -1)}
	case Next:
		return State{Mode: s.Mode, Anchor: step(s.Mode, s.Anchor, +1)}
	case Today:
		return State{Mode: s.Mode, Anchor: dateutil.Midnight(now())}
	case SetView:
		return State{Mode: tr.Mode, Anchor: s.Anchor}
	case SetAnchor:
		return State{Mode: s.Mode, Anchor: dateutil.Midnight(tr.Date)}
	default:
		return s
	}
}

func step(mode model.ViewMode, anchor time.Time, dir int) time.Time {
	switch mode {
	case model.ViewWeek:
		return dateutil.AddDays(anchor, 7*dir)
	case model.ViewDay:
		return dateutil.AddDays(anchor, dir)
	default:
		// Month: fix the day to the 1st before stepping so that e.g.
		// Jan 31 -> Feb never normalizes into March.
		first := dateutil.FirstOfMonth(anchor)
		return first.AddDate(0, dir, 0)
	}
}
