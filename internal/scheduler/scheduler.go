// ABOUTME: Cancellable scheduled tasks: one-shot timers, periodic tickers, debouncers
// ABOUTME: Every handle stops idempotently so shutdown never leaks timer goroutines

package scheduler

import (
	"sync"
	"time"
)

// Task is a scheduled one-shot or periodic action.
type Task struct {
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newTask() *Task {
	return &Task{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// After runs fn once after d unless the task is stopped first.
func After(d time.Duration, fn func()) *Task {
	t := newTask()
	go func() {
		defer close(t.doneCh)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.stopCh:
		case <-timer.C:
			fn()
		}
	}()
	return t
}

// Every runs fn every interval until the task is stopped.
func Every(interval time.Duration, fn func()) *Task {
	t := newTask()
	go func() {
		defer close(t.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// Stop cancels the task. Safe to call multiple times and concurrently.
// It does not wait for a callback that is already running.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh
}

// Debouncer coalesces bursts of Trigger calls into one action that runs
// after a quiet period.
type Debouncer struct {
	quiet  time.Duration
	action func()

	mu      sync.Mutex
	pending *Task
	stopped bool
}

// NewDebouncer creates a Debouncer running action after quiet elapses
// without a further Trigger.
func NewDebouncer(quiet time.Duration, action func()) *Debouncer {
	return &Debouncer{quiet: quiet, action: action}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending.Stop()
	var self *Task
	self = After(d.quiet, func() {
		d.mu.Lock()
		if d.pending != self {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		d.action()
	})
	d.pending = self
}

// Pending reports whether an action is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush runs a pending action immediately. No-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	p := d.pending
	d.pending = nil
	d.mu.Unlock()
	if p == nil {
		return
	}
	p.Stop()
	d.action()
}

// Stop cancels any pending action; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
