package sched

import "time"

// An Event is something going to happen in the future. Time is virtual,
// measured as a Duration since engine start.
type Event interface {
	// Time returns the time that the event should happen.
	Time() time.Duration

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary events
	// are handled after all same-time primary events are handled.
	IsSecondary() bool
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	ID        string
	time      time.Duration
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(t time.Duration, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.time = t
	e.handler = handler
	e.secondary = false
	return e
}

// Time returns the time that the event is going to happen.
func (e EventBase) Time() time.Duration {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler defines a domain for the events.
//
// One event is always constrained to one Handler: the event can only be
// scheduled by that handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}
