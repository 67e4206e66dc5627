package reconcile

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer coalesces rapid-fire edits into one delayed action per key
// (trailing edge, no leading edge). Scheduling under a key that already has
// a live timer cancels and replaces it, so only the most recent action ever
// fires. Keys are fully independent.
type Debouncer struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*debounceEntry
}

type debounceEntry struct {
	timer  clockwork.Timer
	cancel chan struct{}
	fn     func()
}

func NewDebouncer(clock clockwork.Clock) *Debouncer {
	return &Debouncer{
		clock:  clock,
		timers: make(map[string]*debounceEntry),
	}
}

// Schedule arms (or re-arms) the timer for key. When it fires, fn runs once
// and the entry is removed.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	e := &debounceEntry{
		timer:  d.clock.NewTimer(delay),
		cancel: make(chan struct{}),
		fn:     fn,
	}

	d.mu.Lock()
	if prev, ok := d.timers[key]; ok {
		stopAndDrainTimer(prev.timer)
		close(prev.cancel)
	}
	d.timers[key] = e
	d.mu.Unlock()

	go func() {
		select {
		case <-e.timer.Chan():
			d.mu.Lock()
			if d.timers[key] != e {
				// Superseded between fire and lock; the newer entry wins.
				d.mu.Unlock()
				return
			}
			delete(d.timers, key)
			d.mu.Unlock()
			e.fn()
		case <-e.cancel:
		}
	}()
}

// Cancel drops any pending action for key without running it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.timers[key]; ok {
		stopAndDrainTimer(e.timer)
		close(e.cancel)
		delete(d.timers, key)
	}
}

// Flush runs every pending action immediately. Used when a game start must
// push all outstanding settings before the start command goes out.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	entries := make([]*debounceEntry, 0, len(d.timers))
	for key, e := range d.timers {
		stopAndDrainTimer(e.timer)
		close(e.cancel)
		delete(d.timers, key)
		entries = append(entries, e)
	}
	d.mu.Unlock()

	for _, e := range entries {
		e.fn()
	}
}

// Stop cancels every pending action. Called on shutdown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.timers {
		stopAndDrainTimer(e.timer)
		close(e.cancel)
		delete(d.timers, key)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so no goroutine is
// left blocked, per the time.Timer.Stop contract.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
