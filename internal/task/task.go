// Package task implements the pausable single-shot timer every provider
// uses to bound how long a location source may be tried.
package task

import "time"

// Runner receives the callback when a task falls due.
type Runner interface {
	RunScheduledTask(id string)
}

// Scheduler is the loop a task posts its callback on.
type Scheduler interface {
	Now() time.Time
	PostDelayed(fn func(), d time.Duration) (cancel func())
}

// Task is a single-shot delayed callback identified by id. It is not safe
// for concurrent use; every method must be called on the scheduler's loop.
type Task struct {
	id     string
	runner Runner
	sched  Scheduler

	cancel func()
	gen    uint64
	armed  bool

	// paused holds a remembered deadline between Pause and Resume.
	paused    bool
	required  time.Duration
	started   time.Time
	remaining time.Duration
}

// New creates a disarmed task.
func New(id string, runner Runner, sched Scheduler) *Task {
	return &Task{id: id, runner: runner, sched: sched}
}

func (t *Task) ID() string { return t.id }

// IsSet reports whether a callback is currently scheduled.
func (t *Task) IsSet() bool { return t.armed }

// Remaining returns the time left on a paused task.
func (t *Task) Remaining() (time.Duration, bool) {
	return t.remaining, t.paused
}

// Delayed arms the task to fire after d. Arming an armed task does nothing.
func (t *Task) Delayed(d time.Duration) {
	if t.armed {
		return
	}
	if d < 0 {
		d = 0
	}
	t.paused = false
	t.remaining = 0
	t.schedule(d)
}

// Pause cancels the scheduled callback and remembers the time left.
func (t *Task) Pause() {
	if !t.armed {
		return
	}
	t.release()
	left := t.required - t.sched.Now().Sub(t.started)
	if left < 0 {
		left = 0
	}
	t.paused = true
	t.remaining = left
}

// Resume re-arms a paused task with the time it had left.
func (t *Task) Resume() {
	if t.armed || !t.paused {
		return
	}
	d := t.remaining
	t.paused = false
	t.remaining = 0
	t.schedule(d)
}

// Stop cancels the task and forgets any remembered deadline.
func (t *Task) Stop() {
	t.release()
	t.paused = false
	t.remaining = 0
	t.required = 0
	t.started = time.Time{}
}

func (t *Task) schedule(d time.Duration) {
	t.gen++
	gen := t.gen
	t.required = d
	t.started = t.sched.Now()
	t.armed = true
	t.cancel = t.sched.PostDelayed(func() { t.fire(gen) }, d)
}

func (t *Task) release() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.armed = false
}

func (t *Task) fire(gen uint64) {
	if gen != t.gen || !t.armed {
		return
	}
	t.armed = false
	t.cancel = nil
	t.required = 0
	t.started = time.Time{}
	t.runner.RunScheduledTask(t.id)
}
