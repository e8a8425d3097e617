package source

import (
	"sync"
	"time"
)

// Debouncer runs the last triggered callback once no trigger arrived for
// the interval. Callbacks run with the debouncer locked and must not call
// back into it; Stop returns only after a running callback finished.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	callback func()
	stopped  bool
	mu       sync.Mutex
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger (re)starts the quiet period with callback as the pending call.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := d.callback
	d.callback = nil
	if cb != nil && !d.stopped {
		cb()
	}
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.callback = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
