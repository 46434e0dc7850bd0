package pool

import (
	"log"

	"github.com/offloadlab/wiznet/sched"
)

// HookPosQueuePush marks when an element is pushed into the queue.
var HookPosQueuePush = &sched.HookPos{Name: "Queue Push"}

// HookPosQueuePop marks when an element is popped from the queue.
var HookPosQueuePop = &sched.HookPos{Name: "Queue Pop"}

// A Queue is a bounded fifo for anything. The bus adaptor and the driver
// core exchange commands and responses through queues; instrumentation
// attaches through the hook positions above.
type Queue struct {
	sched.HookableBase

	name     string
	capacity int
	elements []interface{}
	consumer *sched.Task
}

// NewQueue creates a queue with the given capacity.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		name:     name,
		capacity: capacity,
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// SetConsumer registers the task resumed whenever an element is pushed.
func (q *Queue) SetConsumer(t *sched.Task) {
	q.consumer = t
}

// CanPush reports whether the queue has room for another element.
func (q *Queue) CanPush() bool {
	return len(q.elements) < q.capacity
}

// Push adds an element to the queue. Pushing into a full queue is a
// programming error and panics; callers gate on CanPush.
func (q *Queue) Push(e interface{}) {
	if len(q.elements) >= q.capacity {
		log.Panic("queue overflow")
	}

	q.elements = append(q.elements, e)

	if q.NumHooks() > 0 {
		q.InvokeHook(sched.HookCtx{
			Domain: q,
			Pos:    HookPosQueuePush,
			Item:   e,
		})
	}

	if q.consumer != nil {
		q.consumer.Resume()
	}
}

// Pop removes and returns the oldest element, or nil when empty.
func (q *Queue) Pop() interface{} {
	if len(q.elements) == 0 {
		return nil
	}

	e := q.elements[0]
	q.elements = q.elements[1:]

	if q.NumHooks() > 0 {
		q.InvokeHook(sched.HookCtx{
			Domain: q,
			Pos:    HookPosQueuePop,
			Item:   e,
		})
	}

	return e
}

// Peek returns the oldest element without removing it, or nil when empty.
func (q *Queue) Peek() interface{} {
	if len(q.elements) == 0 {
		return nil
	}

	return q.elements[0]
}

// Capacity returns the number of elements the queue can hold.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Size returns the number of elements in the queue.
func (q *Queue) Size() int {
	return len(q.elements)
}

// Clear removes all elements in the queue.
func (q *Queue) Clear() {
	q.elements = nil
}
