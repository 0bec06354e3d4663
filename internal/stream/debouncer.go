package stream

import (
	"sync"
	"time"
)

// Debouncer batches rapid triggers into a single action after a quiet
// period (trailing edge). It owns at most one pending timer.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	action   func()
	seq      uint64         // invalidates timers that fired but lost the race with a newer Trigger/Cancel
	wg       sync.WaitGroup // tracks in-flight actions
}

// NewDebouncer creates a debouncer that calls action once duration has
// passed since the last Trigger.
func NewDebouncer(duration time.Duration, action func()) *Debouncer {
	return &Debouncer{
		duration: duration,
		action:   action,
	}
}

// Trigger (re)arms the timer. Any pending timer is cancelled first.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	d.seq++
	currentSeq := d.seq

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.duration, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.seq != currentSeq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.action()
	})
}

// Pending reports whether a timer is armed and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops any pending action. A timer that already fired but has not
// yet taken the lock is invalidated too. It does not wait for an action
// that is already running.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
}

// CancelAndWait cancels and then blocks until any in-flight action returns.
func (d *Debouncer) CancelAndWait() {
	d.Cancel()
	d.wg.Wait()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		if d.timer.Stop() {
			// stopped before firing; its func will never run
			d.wg.Done()
		}
		d.timer = nil
	}
}
