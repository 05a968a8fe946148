package syncer

import (
	"sync"
	"time"
)

// attemptWindow caps how many sync attempts may be initiated within a
// rolling window. Exceeding the cap rejects further attempts until old
// entries roll out; no token-bucket lib matches this initiated-attempt
// counting, hence the small hand-rolled window.
type attemptWindow struct {
	window time.Duration
	limit  int
	clock  func() time.Time

	mu       sync.Mutex
	attempts []time.Time
}

func newAttemptWindow(window time.Duration, limit int, clock func() time.Time) *attemptWindow {
	if clock == nil {
		clock = time.Now
	}
	return &attemptWindow{window: window, limit: limit, clock: clock}
}

// allow records an attempt if the cap permits and reports whether it may
// proceed. Rejected attempts are not recorded.
func (w *attemptWindow) allow() bool {
	if w.limit <= 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock()
	cutoff := now.Add(-w.window)
	kept := w.attempts[:0]
	for _, t := range w.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.attempts = kept

	if len(w.attempts) >= w.limit {
		return false
	}
	w.attempts = append(w.attempts, now)
	return true
}

func (w *attemptWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts = nil
}
