// Package scheduler provides cancellable delayed jobs where the latest
// schedule wins.
package scheduler

import (
	"sync"
	"time"
)

// Task runs a job once a quiet period of the configured delay has passed
// since the last Schedule call. Runs of the job never overlap.
type Task struct {
	delay time.Duration
	job   func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	closed  bool

	runMu sync.Mutex
}

// NewTask creates an idle task.
func NewTask(delay time.Duration, job func()) *Task {
	if delay < 0 {
		delay = 0
	}
	return &Task{delay: delay, job: job}
}

// Schedule (re)arms the timer. A schedule made while one is pending replaces
// it. It is a no-op after Close.
func (t *Task) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.pending = true
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

// Cancel drops the pending run, if any. It reports whether one was pending.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked()
}

func (t *Task) cancelLocked() bool {
	was := t.pending
	t.gen++
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return was
}

// Flush runs the pending job immediately on the caller's goroutine. It
// reports false when nothing was pending.
func (t *Task) Flush() bool {
	t.mu.Lock()
	if t.closed || !t.cancelLocked() {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()
	t.run()
	return true
}

// Pending reports whether a run is scheduled.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Close cancels any pending run and waits for an in-flight one to finish.
func (t *Task) Close() {
	t.mu.Lock()
	t.closed = true
	t.cancelLocked()
	t.mu.Unlock()

	t.runMu.Lock()
	defer t.runMu.Unlock()
}

func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.mu.Unlock()
	t.run()
}

func (t *Task) run() {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.job()
}
