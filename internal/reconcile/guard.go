package reconcile

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Guard tracks whether someone is in the middle of editing a form control,
// so reconciliation can hold off repainting and not destroy focus or a
// half-finished selection.
//
// Displays report focus and blur for text inputs, selects and textareas.
// On top of that, every dropdown change arms a short-lived interaction
// lock: on some platforms the change event lands before focus has actually
// left the control, a gap the focus set alone cannot see.
type Guard struct {
	clock clockwork.Clock
	// window is how long the dropdown lock stays armed after the most
	// recent change.
	window time.Duration

	mu          sync.Mutex
	focused     map[string]struct{}
	lockedUntil time.Time
}

func NewGuard(clock clockwork.Clock, window time.Duration) *Guard {
	return &Guard{
		clock:   clock,
		window:  window,
		focused: make(map[string]struct{}),
	}
}

// Focus records that control (a display-scoped control ID) gained focus.
func (g *Guard) Focus(control string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.focused[control] = struct{}{}
}

// Blur records that control lost focus.
func (g *Guard) Blur(control string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.focused, control)
}

// LockDropdown arms the dropdown interaction lock, resetting the expiry
// window on repeated changes.
func (g *Guard) LockDropdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lockedUntil = g.clock.Now().Add(g.window)
}

// Editing reports whether a form control is focused or the dropdown lock is
// still armed.
func (g *Guard) Editing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.focused) > 0 {
		return true
	}
	return g.clock.Now().Before(g.lockedUntil)
}
