package refresh

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the quiet period after the last keystroke.
const DefaultSearchDebounce = 300 * time.Millisecond

// Debouncer delivers only the last value submitted within a quiet period.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a Debouncer that calls fn with the latest value once
// delay has passed without a new Submit.
func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Submit records v and restarts the quiet period.
func (d *Debouncer) Submit(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		stale := seq != d.seq
		d.mu.Unlock()
		if !stale {
			d.fn(v)
		}
	})
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}
}
