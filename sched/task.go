package sched

import (
	"sync"
	"time"
)

// Status is what a task's tick function asks of the scheduler: run again
// immediately, run again after a delay, or stay suspended until an external
// Resume.
type Status struct {
	delay     time.Duration
	suspended bool
}

// RunImmediate requests another tick at the current time.
func RunImmediate() Status {
	return Status{}
}

// RunAfter requests another tick once the given delay has elapsed.
func RunAfter(d time.Duration) Status {
	return Status{delay: d}
}

// Suspend parks the task until something calls Resume on it.
func Suspend() Status {
	return Status{suspended: true}
}

// IsSuspended reports whether the status parks the task.
func (s Status) IsSuspended() bool {
	return s.suspended
}

// Delay returns the requested delay before the next tick. Zero means
// immediate.
func (s Status) Delay() time.Duration {
	return s.delay
}

// Prioritise merges two statuses, soonest wins. A state machine that ticks
// several sub-machines in one pass combines their wishes with this.
func Prioritise(a, b Status) Status {
	if a.suspended {
		return b
	}
	if b.suspended {
		return a
	}
	if b.delay < a.delay {
		return b
	}
	return a
}

// TickEvent is the event a Task schedules for itself.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent.
func MakeTickEvent(handler Handler, t time.Duration) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.time = t
	evt.secondary = false

	return evt
}

// A Task is a cooperative state machine advanced by a tick function. Each
// tick returns a Status that tells the scheduler when to tick again. Resume
// wakes a suspended task from completion contexts such as interrupt
// callbacks or queue hand-offs.
//
// A task may observe spurious ticks: a Resume that lands while an earlier
// wake is still queued leaves both events in the engine. Tick functions must
// tolerate being called with nothing to do.
type Task struct {
	lock   sync.Mutex
	name   string
	engine Engine
	tick   func() Status

	pending  bool
	nextWake time.Duration
}

// NewTask creates a task around the given tick function. The task does not
// run until Start or Resume is called.
func NewTask(name string, engine Engine, tick func() Status) *Task {
	t := new(Task)
	t.name = name
	t.engine = engine
	t.tick = tick
	return t
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// Start schedules the first tick at the current time.
func (t *Task) Start() {
	t.Resume()
}

// Resume schedules a tick at the current time unless one is already due at
// or before it.
func (t *Task) Resume() {
	t.scheduleAt(t.engine.CurrentTime())
}

func (t *Task) scheduleAt(target time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.pending && t.nextWake <= target {
		return
	}

	t.pending = true
	t.nextWake = target
	t.engine.Schedule(MakeTickEvent(t, target))
}

// Handle runs the tick function and reschedules per the returned status.
func (t *Task) Handle(_ Event) error {
	t.lock.Lock()
	t.pending = false
	t.lock.Unlock()

	status := t.tick()
	if status.suspended {
		return nil
	}

	t.scheduleAt(t.engine.CurrentTime() + status.delay)

	return nil
}
