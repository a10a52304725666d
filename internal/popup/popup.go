// Package popup tracks which day's overflow popup is open. At most one
// popup is open at a time; opening a new one implicitly closes the
// previous one.
package popup

import (
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// DismissReason records why a popup closed. Purely informational.
type DismissReason string

const (
	DismissExplicit       DismissReason = "explicit"
	DismissOutsidePointer DismissReason = "outside-pointer"
	DismissEscape         DismissReason = "escape"
	DismissReplaced       DismissReason = "replaced"
)

// Coordinator owns the overflow popup selection.
type Coordinator struct {
	active *model.OverflowSelection
}

// NewCoordinator returns a Coordinator with no popup open.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Open records the active day and screen anchor, replacing any popup that
// was already open.
func (c *Coordinator) Open(dayKey string, anchorX, anchorY int) {
	if c.active != nil {
		appLog.Debug("popup: replacing open popup", "previous", c.active.DayKey, "next", dayKey)
	}
	c.active = &model.OverflowSelection{DayKey: dayKey, AnchorX: anchorX, AnchorY: anchorY}
}

// Close clears the selection.
func (c *Coordinator) Close() {
	c.active = nil
}

// Dismiss closes the popup, logging the trigger.
func (c *Coordinator) Dismiss(reason DismissReason) {
	if c.active != nil {
		appLog.Debug("popup: dismissed", "day", c.active.DayKey, "reason", string(reason))
	}
	c.active = nil
}

// Active returns the open selection, if any.
func (c *Coordinator) Active() (model.OverflowSelection, bool) {
	if c.active == nil {
		return model.OverflowSelection{}, false
	}
	return *c.active, true
}

// IsOpen reports whether the popup for the given day key is the open one.
func (c *Coordinator) IsOpen(dayKey string) bool {
	return c.active != nil && c.active.DayKey == dayKey
}
