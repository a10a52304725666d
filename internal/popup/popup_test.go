package popup

import "testing"

func TestAtMostOnePopupOpen(t *testing.T) {
	t.Parallel()
	c := NewCoordinator()

	if _, open := c.Active(); open {
		t.Fatal("new coordinator should have no popup open")
	}

	c.Open("2020-10-05", 120, 340)
	sel, open := c.Active()
	if !open || sel.DayKey != "2020-10-05" {
		t.Fatalf("Active() = %+v, %v; want 2020-10-05 open", sel, open)
	}
	if sel.AnchorX != 120 || sel.AnchorY != 340 {
		t.Errorf("anchor = (%d,%d), want (120,340)", sel.AnchorX, sel.AnchorY)
	}

	// Opening for another day replaces the first; exactly one stays open.
	c.Open("2020-10-09", 200, 400)
	sel, open = c.Active()
	if !open || sel.DayKey != "2020-10-09" {
		t.Fatalf("after second Open: Active() = %+v, %v; want 2020-10-09", sel, open)
	}
	if c.IsOpen("2020-10-05") {
		t.Error("previous day's popup still reports open")
	}
	if !c.IsOpen("2020-10-09") {
		t.Error("new day's popup not reported open")
	}
}

func TestCloseAndDismiss(t *testing.T) {
	t.Parallel()
	c := NewCoordinator()

	c.Open("2020-10-05", 0, 0)
	c.Close()
	if _, open := c.Active(); open {
		t.Error("popup still open after Close")
	}

	for _, reason := range []DismissReason{DismissExplicit, DismissOutsidePointer, DismissEscape} {
		c.Open("2020-10-05", 0, 0)
		c.Dismiss(reason)
		if _, open := c.Active(); open {
			t.Errorf("popup still open after Dismiss(%s)", reason)
		}
	}

	// Dismissing with nothing open is a no-op.
	c.Dismiss(DismissEscape)
}
