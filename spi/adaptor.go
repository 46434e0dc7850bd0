package spi

import (
	"log"
	"time"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
)

type adaptorState int

const (
	stateInit adaptorState = iota
	stateReset
	stateIdle
	stateSelect
	stateHeader
	stateInline
	stateBulk
	stateBulkWait
	stateRelease
	stateRespond
)

const (
	resetHoldTime = 250 * time.Millisecond
	startupTime   = 250 * time.Millisecond

	// busRetryInterval paces re-polling of a bus that reports not ready,
	// so a stalled bus cannot pin the engine at one instant.
	busRetryInterval = 10 * time.Microsecond
)

// Device interrupt status block in the common registers. On a device
// interrupt the adaptor reads it autonomously, ahead of queued commands,
// and the response reaches the driver core like any other.
const (
	intStatusAddr uint16 = 0x0015
	intStatusSize byte   = 4
)

// An Adaptor owns the bus and runs the single-transaction pipeline: pop a
// command, select the device, send the three-byte header, move the
// payload, release, route the response. One transaction is in flight at a
// time; responses come back in command order.
type Adaptor struct {
	task  *sched.Task
	bus   Bus
	event *Event

	commands  *pool.Queue
	responses *pool.Queue

	state   adaptorState
	current Command
	offset  int
}

// NewAdaptor creates an adaptor over the given bus. queueDepth bounds both
// the command and the response queue.
func NewAdaptor(
	name string,
	engine sched.Engine,
	bus Bus,
	queueDepth int,
) *Adaptor {
	a := new(Adaptor)
	a.bus = bus
	a.commands = pool.NewQueue(name+".Commands", queueDepth)
	a.responses = pool.NewQueue(name+".Responses", queueDepth)
	a.task = sched.NewTask(name, engine, a.tick)
	a.event = NewEvent(a.task)

	a.commands.SetConsumer(a.task)
	bus.Bind(a.task.Resume, a.onInterrupt)

	return a
}

// Commands returns the queue the driver submits commands to.
func (a *Adaptor) Commands() *pool.Queue {
	return a.commands
}

// Responses returns the queue completed responses arrive on.
func (a *Adaptor) Responses() *pool.Queue {
	return a.responses
}

// Start begins the reset sequence and the pipeline.
func (a *Adaptor) Start() {
	a.task.Start()
}

func (a *Adaptor) onInterrupt() {
	a.event.Set(FlagDeviceInterrupt)
}

func (a *Adaptor) tick() sched.Status {
	switch a.state {
	case stateInit:
		a.bus.SetReset(true)
		a.state = stateReset
		return sched.RunAfter(resetHoldTime)

	case stateReset:
		a.bus.SetReset(false)
		a.state = stateIdle
		return sched.RunAfter(startupTime)

	case stateIdle:
		return a.tickIdle()

	case stateSelect:
		if !a.bus.Select() {
			return sched.RunAfter(busRetryInterval)
		}
		a.state = stateHeader
		return sched.RunImmediate()

	case stateHeader:
		return a.tickHeader()

	case stateInline:
		return a.tickInline()

	case stateBulk:
		return a.tickBulk()

	case stateBulkWait:
		return a.tickBulkWait()

	case stateRelease:
		if !a.bus.Release() {
			return sched.RunAfter(busRetryInterval)
		}
		a.state = stateRespond
		return sched.RunImmediate()

	case stateRespond:
		return a.tickRespond()

	default:
		log.Panicf("invalid adaptor state %d", a.state)
		return sched.Suspend()
	}
}

// tickIdle picks the next transaction. A pending device interrupt outranks
// queued commands: its status read goes out first so the driver core sees
// interrupt state before the effects of later commands.
func (a *Adaptor) tickIdle() sched.Status {
	if a.event.Consume()&FlagDeviceInterrupt != 0 {
		a.current = InlineReadCommand(
			intStatusAddr, CommonRegs()|ControlRead, intStatusSize)
		a.state = stateSelect
		return sched.RunImmediate()
	}

	if cmd := a.commands.Pop(); cmd != nil {
		a.current = cmd.(Command)
		a.state = stateSelect
		return sched.RunImmediate()
	}

	return sched.Suspend()
}

func (a *Adaptor) tickHeader() sched.Status {
	header := [3]byte{
		byte(a.current.Addr >> 8),
		byte(a.current.Addr),
		a.current.Control & controlDataModeMask,
	}

	switch a.bus.WriteInline(header[:]) {
	case StatusOK:
		if a.current.Size > 0 {
			a.state = stateInline
		} else {
			a.offset = 0
			a.state = stateBulk
		}
		return sched.RunImmediate()
	case StatusNotReady:
		return sched.RunAfter(busRetryInterval)
	default:
		log.Panic("bus failed while sending command header")
		return sched.Suspend()
	}
}

func (a *Adaptor) tickInline() sched.Status {
	var status Status
	if a.current.IsWrite() {
		status = a.bus.WriteInline(a.current.InlineBytes())
	} else {
		status = a.bus.ReadInline(a.current.InlineBytes())
	}

	switch status {
	case StatusOK:
		a.state = stateRelease
		return sched.RunImmediate()
	case StatusNotReady:
		return sched.RunAfter(busRetryInterval)
	default:
		log.Panic("bus failed during inline transfer")
		return sched.Suspend()
	}
}

func (a *Adaptor) tickBulk() sched.Status {
	segment := a.current.Data.Segment(a.offset)
	if segment == nil {
		a.state = stateRelease
		return sched.RunImmediate()
	}

	var started bool
	if a.current.IsWrite() {
		started = a.bus.StartWrite(segment)
	} else {
		started = a.bus.StartRead(segment)
	}

	if !started {
		return sched.RunAfter(busRetryInterval)
	}

	a.offset += len(segment)
	a.state = stateBulkWait
	return sched.Suspend()
}

func (a *Adaptor) tickBulkWait() sched.Status {
	switch a.bus.Poll() {
	case StatusOK:
		if a.offset >= a.current.Data.Len() {
			a.state = stateRelease
		} else {
			a.state = stateBulk
		}
		return sched.RunImmediate()
	case StatusActive:
		return sched.Suspend()
	default:
		log.Panic("bus failed during bulk transfer")
		return sched.Suspend()
	}
}

func (a *Adaptor) tickRespond() sched.Status {
	if a.current.DiscardsResponse() {
		a.current = Command{}
		a.state = stateIdle
		return sched.RunImmediate()
	}

	if !a.responses.CanPush() {
		return sched.RunAfter(busRetryInterval)
	}

	a.responses.Push(a.current)
	a.current = Command{}
	a.state = stateIdle
	return sched.RunImmediate()
}
