package sched

import "time"

// TimeTeller can be used to get the current virtual time.
type TimeTeller interface {
	CurrentTime() time.Duration
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// An Engine is a unit that keeps the discrete event execution running.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run processes all the events until no event is left. A driver with a
	// periodic deadline never drains its queue; use RunUntil for those.
	Run() error

	// RunUntil processes events up to and including time t, leaving later
	// events queued.
	RunUntil(t time.Duration) error

	// Pause prevents the engine from triggering more events until Continue
	// is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}
