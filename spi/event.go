package spi

import (
	"sync"

	"github.com/offloadlab/wiznet/sched"
)

// FlagDeviceInterrupt is set when the device interrupt line fires.
const FlagDeviceInterrupt uint32 = 1 << 0

// An Event is a set of flag bits raised from completion contexts such as
// interrupt callbacks. Setting a bit resumes the owning task; the task
// consumes the accumulated bits on its next tick.
type Event struct {
	mu    sync.Mutex
	flags uint32
	owner *sched.Task
}

// NewEvent creates an event owned by the given task.
func NewEvent(owner *sched.Task) *Event {
	return &Event{owner: owner}
}

// Set raises the given flag bits and resumes the owner.
func (e *Event) Set(flags uint32) {
	e.mu.Lock()
	e.flags |= flags
	e.mu.Unlock()

	e.owner.Resume()
}

// Consume returns the accumulated flag bits and clears them.
func (e *Event) Consume() uint32 {
	e.mu.Lock()
	flags := e.flags
	e.flags = 0
	e.mu.Unlock()

	return flags
}
