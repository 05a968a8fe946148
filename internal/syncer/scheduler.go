package syncer

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single task run. Each
// Schedule call replaces any pending task, so the task that eventually fires
// observes the state at the moment the window closed, not at each trigger.
// It is independent of any UI lifecycle; owners must call CancelPending on
// teardown so no orphaned callback fires against a stale session.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule arms (or re-arms) the debounce window with task.
func (d *Debouncer) Schedule(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, task)
}

// CancelPending drops any armed task.
func (d *Debouncer) CancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
