// Package debounce collapses bursts of calls into a single trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays invoking fn until wait has elapsed since the last Call.
//
// Only the argument of the most recent Call is ever delivered. Calls never
// block on fn and never see its result: fn runs on the timer's goroutine, so it
// may run concurrently with a previous invocation that is still in progress.
//
// All methods are safe for concurrent use.
type Debouncer[T any] struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func(T)
	timer   *time.Timer
	seq     uint64 // sequence number to detect stale timer callbacks
	pending bool
	stopped bool
}

// New creates a debouncer around fn. A zero wait still defers fn to another
// goroutine; negative waits are treated as zero.
func New[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	if wait < 0 {
		wait = 0
	}
	return &Debouncer[T]{
		wait: wait,
		fn:   fn,
	}
}

// Wait returns the quiescence window.
func (d *Debouncer[T]) Wait() time.Duration {
	return d.wait
}

// Call schedules fn(arg) after the debounce window, replacing any pending
// invocation and its argument.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	currentSeq := d.seq
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		// a newer Call or a Cancel may have won the race against this timer
		if !d.pending || d.seq != currentSeq {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.timer = nil
		d.mu.Unlock()

		d.fn(arg)
	})
}

// Cancel drops the pending invocation, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Pending reports whether an invocation is scheduled and has not fired yet.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending invocation and turns later calls into no-ops.
// An invocation that already started keeps running.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

// cancelLocked must be called with d.mu held.
func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}
