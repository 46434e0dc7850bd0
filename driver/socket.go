package driver

import (
	"log"
	"time"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

// submitRetryInterval is the back-off before re-attempting a command
// submission that found the pipeline full.
const submitRetryInterval = time.Millisecond

func retryLater() sched.Status {
	return sched.RunAfter(submitRetryInterval)
}

// phase is the protocol a socket is committed to. Each phase has its
// own state field; only the field matching the current phase is
// meaningful.
type phase uint8

const (
	phaseClosed phase = iota
	phaseUDP
	phaseTCP
)

// closedState covers the shared open and close sequences plus the free
// and terminal error states.
type closedState uint8

const (
	closedFree closedState = iota
	closedSetPort
	closedSetOpen
	closedOpenStatusRead
	closedOpenStatusCheck
	closedIntEnable
	closedClosingStatusRead
	closedClosingStatusCheck
	closedIntDisable
	closedCleanup
	closedError
)

// setupState holds socket parameters only valid before the socket
// reaches its protocol phase.
type setupState struct {
	localPort uint16
}

// activeState holds the device buffer window of the transfer currently
// in progress. Pointers use the device's wrapping 16-bit address space.
type activeState struct {
	dataPtr  uint16
	limitPtr uint16
}

type socket struct {
	id  uint8
	drv *Driver

	phase       phase
	closedState closedState
	udpState    udpState
	tcpState    tcpState

	mode          byte
	notifyHandler NotifyHandler

	// interruptFlags accumulates socket interrupt bits read from the
	// device plus host-local request flags. interruptClear marks bits to
	// retire; the hardware portion is written back to the device before
	// the local copy is dropped.
	interruptFlags byte
	interruptClear byte

	setup  setupState
	active activeState

	payload  pool.Buffer
	rxStream *pool.Stream
	txStream *pool.Stream
}

func (s *socket) free() bool {
	return s.phase == phaseClosed && s.closedState == closedFree
}

func (s *socket) readControl() byte {
	return spi.SocketRegs(s.id) | spi.ControlRead
}

func (s *socket) writeControl() byte {
	return spi.SocketRegs(s.id) | spi.ControlWrite | spi.ControlDiscardResponse
}

// awaitRegs issues an inline read of the socket register block and
// records the expected response for this socket.
func (s *socket) awaitRegs(addr uint16, size byte) bool {
	cmd := spi.InlineReadCommand(addr, s.readControl(), size)
	return s.drv.expect(cmd, int8(s.id))
}

// issueCommand writes the socket command register.
func (s *socket) issueCommand(cmd byte) bool {
	return s.drv.enqueue(spi.InlineCommand(snCommand, s.writeControl(), cmd))
}

func (s *socket) tick() sched.Status {
	if s.free() {
		return sched.Suspend()
	}

	// Retire handled interrupts before anything else: the hardware bits
	// are written back first so the device can re-raise new events, then
	// the local copies are dropped.
	if s.interruptClear != 0 {
		if hw := s.interruptClear & intHardwareMask; hw != 0 {
			clear := spi.InlineCommand(snInterrupt, s.writeControl(), hw)
			if !s.drv.enqueue(clear) {
				return retryLater()
			}
		}
		s.interruptFlags &^= s.interruptClear
		s.interruptClear = 0
	}

	switch s.phase {
	case phaseClosed:
		return s.tickClosed()
	case phaseUDP:
		return s.tickUDP()
	case phaseTCP:
		return s.tickTCP()
	}
	return sched.Suspend()
}

func (s *socket) tickClosed() sched.Status {
	switch s.closedState {
	case closedFree, closedError:
		return sched.Suspend()

	case closedSetPort:
		cmd := spi.InlineCommand(snLocalPort, s.writeControl(),
			byte(s.setup.localPort>>8), byte(s.setup.localPort))
		if !s.drv.enqueue(cmd) {
			return retryLater()
		}
		s.closedState = closedSetOpen
		return sched.RunImmediate()

	case closedSetOpen:
		cmd := spi.InlineCommand(snMode, s.writeControl(), s.mode, cmdOpen)
		if !s.drv.enqueue(cmd) {
			return retryLater()
		}
		s.closedState = closedOpenStatusRead
		return sched.RunImmediate()

	case closedOpenStatusRead:
		if !s.awaitRegs(snStatus, 1) {
			return retryLater()
		}
		s.closedState = closedOpenStatusCheck
		return sched.Suspend()

	case closedOpenStatusCheck, closedClosingStatusCheck:
		return sched.Suspend()

	case closedIntEnable:
		enables := intReceive | intTimeout | intSendOK
		if s.mode == modeTCP {
			enables |= intConnected | intDisconnect
		}
		cmd := spi.InlineCommand(snIntEnable, s.writeControl(), enables)
		if !s.drv.enqueue(cmd) {
			return retryLater()
		}
		if s.mode == modeTCP {
			s.phase = phaseTCP
			s.tcpState = tcpOpen
		} else {
			s.phase = phaseUDP
			s.udpState = udpOpen
		}
		return sched.RunImmediate()

	case closedClosingStatusRead:
		if !s.awaitRegs(snStatus, 1) {
			return retryLater()
		}
		s.closedState = closedClosingStatusCheck
		return sched.Suspend()

	case closedIntDisable:
		cmd := spi.InlineCommand(snIntEnable, s.writeControl(), 0)
		if !s.drv.enqueue(cmd) {
			return retryLater()
		}
		s.interruptClear = 0xFF
		s.closedState = closedCleanup
		return sched.RunImmediate()

	case closedCleanup:
		s.payload.Reset()
		var scratch pool.Buffer
		for s.txStream.Accept(&scratch) {
		}
		for s.rxStream.Accept(&scratch) {
		}
		s.rxStream.SetConsumer(nil)
		s.notifyHandler = nil
		s.mode = 0
		s.setup = setupState{}
		s.active = activeState{}
		s.closedState = closedFree
		return sched.Suspend()
	}
	return sched.Suspend()
}

// processResponse handles a response the socket was recorded as
// waiting for. The response shape has already been validated against
// the recorded expectation.
func (s *socket) processResponse(rsp *spi.Command) {
	switch s.phase {
	case phaseClosed:
		s.closedResponse(rsp)
	case phaseUDP:
		s.udpResponse(rsp)
	case phaseTCP:
		s.tcpResponse(rsp)
	}
}

func (s *socket) closedResponse(rsp *spi.Command) {
	switch s.closedState {
	case closedOpenStatusCheck:
		expected := statusOpenUDP
		if s.mode == modeTCP {
			expected = statusInitTCP
		}
		if rsp.Inline[0] == expected {
			s.closedState = closedIntEnable
		} else {
			s.closedState = closedOpenStatusRead
		}

	case closedClosingStatusCheck:
		if rsp.Inline[0] == statusClosed {
			s.closedState = closedIntDisable
		} else {
			s.closedState = closedClosingStatusRead
		}

	default:
		s.sequenceError()
	}
}

// sequenceError promotes the socket to its terminal error state. The
// pipeline ordering invariant has been broken, so no further commands
// are issued for this socket.
func (s *socket) sequenceError() {
	log.Printf("socket %d: response sequence error", s.id)
	switch s.phase {
	case phaseClosed:
		s.closedState = closedError
	case phaseUDP:
		s.udpState = udpError
	case phaseTCP:
		s.tcpState = tcpError
	}
}

// requestClose raises the host-local close request flag; the socket
// state machine performs the shutdown on its next pass. A close already
// requested but not yet serviced is reported as not open.
func (s *socket) requestClose() Status {
	if s.interruptFlags&flagCloseRequest != 0 {
		return StatusNotOpen
	}
	s.interruptFlags |= flagCloseRequest
	s.drv.core.Resume()
	return StatusSuccess
}
