package driver

import (
	"log"
	"net"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

type tcpState uint8

// States from tcpActive onwards imply an established connection.
const (
	tcpOpen tcpState = iota
	tcpReady
	tcpClose
	tcpDisconnect
	tcpSetRemote
	tcpConnectRequest
	tcpConnectWait
	tcpActive
	tcpSleeping
	tcpRxBufferCheck
	tcpRxBlockRead
	tcpRxBlockCheck
	tcpRxPointerWrite
	tcpRxReadConfirm
	tcpRxQueue
	tcpTxBufferCheck
	tcpTxPayloadAppend
	tcpTxPayloadWrite
	tcpTxPointerWrite
	tcpTxSend
	tcpTxIntCheck
	tcpError
)

func (s *socket) tcpConnected() bool {
	return s.tcpState >= tcpActive && s.tcpState != tcpError
}

// rxHeadroom is the minimum receive stream space required before a new
// device read is started, so a large incoming block cannot wedge the
// queueing step.
const rxHeadroom = 4 * pool.SegmentSize

func (s *socket) tickTCP() sched.Status {
	switch s.tcpState {
	case tcpOpen:
		s.notify(NotifyTCPSocketOpened)
		s.tcpState = tcpReady
		return sched.RunImmediate()

	case tcpReady:
		if s.interruptFlags&flagCloseRequest != 0 {
			s.tcpState = tcpClose
			return sched.RunImmediate()
		}
		return sched.Suspend()

	// A local close of an established connection disconnects cleanly; a
	// close of an unconnected or remotely dropped socket just shuts the
	// port. Both feed into the common closing sequence.
	case tcpClose, tcpDisconnect:
		closeCommand := cmdClose
		if s.tcpState == tcpDisconnect {
			closeCommand = cmdDisconnect
		}
		if !s.issueCommand(closeCommand) {
			return retryLater()
		}
		s.notify(NotifyTCPSocketClosed)
		s.phase = phaseClosed
		s.closedState = closedClosingStatusRead
		return sched.RunImmediate()

	case tcpSetRemote:
		if !s.setRemoteAddr() {
			return retryLater()
		}
		s.tcpState = tcpConnectRequest
		return sched.RunImmediate()

	case tcpConnectRequest:
		if !s.issueCommand(cmdConnect) {
			return retryLater()
		}
		s.tcpState = tcpConnectWait
		return sched.Suspend()

	case tcpConnectWait:
		return s.tcpConnectIntCheck()

	case tcpActive, tcpSleeping:
		return s.tickTCPActive()

	// Transfer states waiting on a response callback.
	case tcpRxBufferCheck, tcpRxBlockCheck, tcpTxBufferCheck:
		return sched.Suspend()

	case tcpRxBlockRead:
		if !s.rxBlockRead() {
			return retryLater()
		}
		s.tcpState = tcpRxBlockCheck
		return sched.Suspend()

	case tcpRxPointerWrite:
		if !s.rxPointerWrite() {
			return retryLater()
		}
		s.tcpState = tcpRxReadConfirm
		return sched.RunImmediate()

	case tcpRxReadConfirm:
		if !s.issueCommand(cmdReceive) {
			return retryLater()
		}
		s.tcpState = tcpRxQueue
		return sched.RunImmediate()

	case tcpRxQueue:
		if !s.rxStream.Send(&s.payload) {
			return retryLater()
		}
		s.tcpState = tcpActive
		return sched.RunImmediate()

	case tcpTxPayloadAppend:
		if s.tcpTxDataAppend() {
			s.tcpState = tcpTxPayloadWrite
		} else {
			s.tcpState = tcpTxPointerWrite
		}
		return sched.RunImmediate()

	case tcpTxPayloadWrite:
		if !s.txDataWrite() {
			return retryLater()
		}
		s.tcpState = tcpTxPayloadAppend
		return sched.RunImmediate()

	case tcpTxPointerWrite:
		if !s.txPointerWrite() {
			return retryLater()
		}
		s.tcpState = tcpTxSend
		return sched.RunImmediate()

	case tcpTxSend:
		if !s.issueCommand(cmdSend) {
			return retryLater()
		}
		s.tcpState = tcpTxIntCheck
		return sched.Suspend()

	case tcpTxIntCheck:
		return s.tcpTxIntCheck()

	case tcpError:
		return sched.Suspend()
	}
	return sched.Suspend()
}

// tickTCPActive initiates either an interrupt driven receive or a
// queued transmit. On a remote disconnect any pending received data is
// drained before the socket closes.
func (s *socket) tickTCPActive() sched.Status {
	flags := s.interruptFlags

	if flags&intDisconnect != 0 && flags&intReceive == 0 {
		s.tcpState = tcpClose
		return sched.RunImmediate()
	}
	if flags&flagCloseRequest != 0 {
		s.tcpState = tcpDisconnect
		return sched.RunImmediate()
	}

	if flags&intReceive != 0 && s.rxStream.Free() >= rxHeadroom {
		if !s.awaitRegs(snRxStatus, 6) {
			return retryLater()
		}
		s.tcpState = tcpRxBufferCheck
		return sched.Suspend()
	}

	// The active state rechecks the transmit buffer even with nothing
	// queued, to flush residual data; the sleeping state only wakes for
	// newly queued payloads.
	if s.tcpState == tcpActive || s.txStream.Buffered() > 0 {
		if !s.awaitRegs(snTxFree, 6) {
			return retryLater()
		}
		s.tcpState = tcpTxBufferCheck
		return sched.Suspend()
	}

	return sched.Suspend()
}

func (s *socket) tcpConnectIntCheck() sched.Status {
	flags := s.interruptFlags

	switch {
	case flags&intTimeout != 0:
		s.notify(NotifyTCPConnectTimeout)
		s.tcpState = tcpReady
	case flags&intDisconnect != 0:
		log.Printf("socket %d: tcp closed during connection", s.id)
		s.tcpState = tcpClose
	case flags&intConnected != 0:
		log.Printf("socket %d: tcp connection established", s.id)
		s.notify(NotifyTCPConnected)
		s.tcpState = tcpActive
	default:
		return sched.Suspend()
	}

	s.interruptClear |= intTimeout | intConnected | intDisconnect
	return sched.RunImmediate()
}

// tcpTxDataAppend pulls the next queued payload into the local buffer
// if it fits in the remaining device buffer window. A payload that does
// not fit goes back to the head of the queue for the next send round.
func (s *socket) tcpTxDataAppend() bool {
	free := s.active.limitPtr - s.active.dataPtr

	if !s.txStream.Accept(&s.payload) {
		return false
	}
	if uint16(s.payload.Len()) > free {
		s.txStream.PushBack(&s.payload)
		return false
	}
	return true
}

// tcpTxIntCheck waits for the send outcome interrupt. On a timeout the
// outgoing data remains in the device buffer and is retried by the
// next buffer check.
// TODO: surface transmit timeouts to the connection notification
// handler.
func (s *socket) tcpTxIntCheck() sched.Status {
	flags := s.interruptFlags

	if flags&(intTimeout|intSendOK) == 0 {
		return sched.Suspend()
	}

	s.interruptClear |= intTimeout | intSendOK
	s.tcpState = tcpActive
	return sched.RunImmediate()
}

func (s *socket) tcpResponse(rsp *spi.Command) {
	switch s.tcpState {
	case tcpRxBufferCheck:
		if s.rxBufferCheck(rsp, 1) {
			s.tcpState = tcpRxBlockRead
		} else {
			s.tcpState = tcpActive
		}

	case tcpRxBlockCheck:
		s.rxBlockCheck(rsp)
		s.tcpState = tcpRxPointerWrite

	case tcpTxBufferCheck:
		s.tcpTxBufferCheck(rsp)

	default:
		s.sequenceError()
	}
}

// tcpTxBufferCheck validates the transmit buffer status snapshot and
// decides between batching new payloads, flushing residual data and
// going to sleep. An inconsistent snapshot is re-read.
func (s *socket) tcpTxBufferCheck(rsp *spi.Command) {
	b := rsp.InlineBytes()
	txFree := be16(b[0], b[1])
	readPtr := be16(b[2], b[3])
	writePtr := be16(b[4], b[5])

	if writePtr-readPtr != s.drv.bufBytes-txFree {
		s.tcpState = tcpActive
		return
	}

	if s.txStream.Buffered() == 0 {
		if writePtr == readPtr {
			s.tcpState = tcpSleeping
		} else {
			s.tcpState = tcpTxSend
		}
		return
	}

	// New data is appended at the write pointer, bounded by the free
	// space left in the device buffer.
	s.active.dataPtr = writePtr
	s.active.limitPtr = writePtr + txFree
	s.tcpState = tcpTxPayloadAppend
}

// A TCPConn is a socket opened for stream transfer as a TCP client.
// All methods are non-blocking.
type TCPConn struct {
	sock *socket
}

// LocalPort returns the bound local port.
func (c *TCPConn) LocalPort() uint16 {
	return c.sock.setup.localPort
}

// SetConsumer registers the task resumed when received data becomes
// available.
func (c *TCPConn) SetConsumer(t *sched.Task) {
	c.sock.rxStream.SetConsumer(t)
}

// Connect initiates the client handshake to the given server. Only
// IPv4 destinations are supported. Completion is reported through the
// notification handler.
func (c *TCPConn) Connect(addr net.IP, port uint16) Status {
	ip4 := addr.To4()
	if ip4 == nil {
		return StatusUnsupported
	}

	s := c.sock
	if s.phase != phaseTCP {
		return StatusNotOpen
	}
	if s.tcpState != tcpReady {
		return StatusNotValid
	}

	log.Printf("socket %d: tcp connection request to %s:%d", s.id, ip4, port)

	s.payload.Resize(6)
	s.payload.Write(0, ip4)
	s.payload.Write(4, []byte{byte(port >> 8), byte(port)})

	s.tcpState = tcpSetRemote
	s.drv.core.Resume()
	return StatusSuccess
}

// Send queues the payload buffer for transmission, consuming it on
// success. Payloads queued close together are packed into a single
// device send.
func (c *TCPConn) Send(payload *pool.Buffer) Status {
	s := c.sock
	if s.phase != phaseTCP {
		return StatusNotOpen
	}
	if !s.tcpConnected() {
		return StatusNotConnected
	}
	if payload.Len() > int(s.drv.bufBytes) {
		return StatusOversized
	}

	if !s.txStream.Send(payload) {
		return StatusRetry
	}
	return StatusSuccess
}

// Receive moves the next received data block into payload.
func (c *TCPConn) Receive(payload *pool.Buffer) Status {
	s := c.sock
	if s.phase != phaseTCP {
		return StatusNotOpen
	}
	if !s.tcpConnected() {
		return StatusNotConnected
	}

	if !s.rxStream.Accept(payload) {
		return StatusRetry
	}
	return StatusSuccess
}

// Close initiates an orderly shutdown, disconnecting an established
// connection first.
func (c *TCPConn) Close() Status {
	if c.sock.phase != phaseTCP {
		return StatusNotOpen
	}
	return c.sock.requestClose()
}
