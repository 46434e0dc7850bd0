package driver

import (
	"net"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

type udpState uint8

const (
	udpOpen udpState = iota
	udpReady
	udpClose
	udpRxBufferCheck
	udpRxSizeRead
	udpRxSizeCheck
	udpRxBlockRead
	udpRxBlockCheck
	udpRxPointerWrite
	udpRxReadConfirm
	udpRxQueue
	udpTxBufferCheck
	udpTxSetRemote
	udpTxPayloadWrite
	udpTxPointerWrite
	udpTxSend
	udpTxIntCheck
	udpError
)

func (s *socket) tickUDP() sched.Status {
	switch s.udpState {
	case udpOpen:
		s.notify(NotifyUDPSocketOpened)
		s.udpState = udpReady
		return sched.RunImmediate()

	case udpReady:
		return s.tickUDPReady()

	case udpClose:
		if !s.issueCommand(cmdClose) {
			return retryLater()
		}
		s.notify(NotifyUDPSocketClosed)
		s.phase = phaseClosed
		s.closedState = closedClosingStatusRead
		return sched.RunImmediate()

	// Transfer states waiting on a response callback.
	case udpRxBufferCheck, udpRxSizeCheck, udpRxBlockCheck, udpTxBufferCheck:
		return sched.Suspend()

	// Fetch the datagram length field from the device receive buffer.
	// It sits after the four address and two port bytes of the header.
	case udpRxSizeRead:
		cmd := spi.InlineReadCommand(s.active.dataPtr+6,
			spi.SocketRxBuffer(s.id)|spi.ControlRead, 2)
		if !s.drv.expect(cmd, int8(s.id)) {
			return retryLater()
		}
		s.udpState = udpRxSizeCheck
		return sched.Suspend()

	case udpRxBlockRead:
		if !s.rxBlockRead() {
			return retryLater()
		}
		s.udpState = udpRxBlockCheck
		return sched.Suspend()

	case udpRxPointerWrite:
		if !s.rxPointerWrite() {
			return retryLater()
		}
		s.udpState = udpRxReadConfirm
		return sched.RunImmediate()

	case udpRxReadConfirm:
		if !s.issueCommand(cmdReceive) {
			return retryLater()
		}
		s.udpState = udpRxQueue
		return sched.RunImmediate()

	case udpRxQueue:
		if !s.rxStream.Send(&s.payload) {
			return retryLater()
		}
		s.udpState = udpReady
		return sched.RunImmediate()

	case udpTxSetRemote:
		if !s.setRemoteAddr() {
			return retryLater()
		}
		s.udpState = udpTxPayloadWrite
		return sched.RunImmediate()

	case udpTxPayloadWrite:
		if !s.txDataWrite() {
			return retryLater()
		}
		s.udpState = udpTxPointerWrite
		return sched.RunImmediate()

	case udpTxPointerWrite:
		if !s.txPointerWrite() {
			return retryLater()
		}
		s.udpState = udpTxSend
		return sched.RunImmediate()

	case udpTxSend:
		if !s.issueCommand(cmdSend) {
			return retryLater()
		}
		s.udpState = udpTxIntCheck
		return sched.Suspend()

	case udpTxIntCheck:
		return s.udpTxIntCheck()

	case udpError:
		return sched.Suspend()
	}
	return sched.Suspend()
}

func (s *socket) tickUDPReady() sched.Status {
	flags := s.interruptFlags

	if flags&flagCloseRequest != 0 {
		s.udpState = udpClose
		return sched.RunImmediate()
	}

	// Inbound datagrams take priority while the receive stream has
	// room. The buffer status block covers the received size and both
	// ring pointers.
	if flags&intReceive != 0 && s.rxStream.Free() > 0 {
		if !s.awaitRegs(snRxStatus, 6) {
			return retryLater()
		}
		s.udpState = udpRxBufferCheck
		return sched.Suspend()
	}

	// A single datagram transmit is in flight at a time, based at the
	// device's transmit read pointer.
	if s.txStream.Buffered() > 0 {
		if !s.awaitRegs(snTxReadPtr, 2) {
			return retryLater()
		}
		s.udpState = udpTxBufferCheck
		return sched.Suspend()
	}

	return sched.Suspend()
}

// udpTxIntCheck waits for the send outcome interrupt. A timeout means
// address resolution failed; the datagram is dropped either way.
func (s *socket) udpTxIntCheck() sched.Status {
	flags := s.interruptFlags

	switch {
	case flags&intTimeout != 0:
		s.notify(NotifyUDPArpTimeout)
	case flags&intSendOK != 0:
		s.notify(NotifyUDPMessageSent)
	default:
		return sched.Suspend()
	}

	s.interruptClear |= intTimeout | intSendOK
	s.udpState = udpReady
	return sched.RunImmediate()
}

func (s *socket) udpResponse(rsp *spi.Command) {
	switch s.udpState {
	case udpRxBufferCheck:
		if s.rxBufferCheck(rsp, udpHeaderSize) {
			s.udpState = udpRxSizeRead
		} else {
			s.udpState = udpReady
		}

	case udpRxSizeCheck:
		dataSize := be16(rsp.Inline[0], rsp.Inline[1])
		avail := s.active.limitPtr - s.active.dataPtr
		if dataSize+udpHeaderSize > avail {
			s.udpState = udpReady
			break
		}
		// Narrow the window to the first queued datagram including its
		// header.
		s.active.limitPtr = s.active.dataPtr + dataSize + udpHeaderSize
		s.udpState = udpRxBlockRead

	case udpRxBlockCheck:
		s.rxBlockCheck(rsp)
		s.udpState = udpRxPointerWrite

	case udpTxBufferCheck:
		readPtr := be16(rsp.Inline[0], rsp.Inline[1])
		if !s.txStream.Accept(&s.payload) {
			s.udpState = udpReady
			break
		}
		s.active.dataPtr = readPtr
		s.udpState = udpTxSetRemote

	default:
		s.sequenceError()
	}
}

// A UDPConn is a socket opened for datagram transfer. Its payload
// queues are serviced by the driver's core worker; all methods are
// non-blocking.
type UDPConn struct {
	sock *socket
}

// LocalPort returns the bound local port.
func (c *UDPConn) LocalPort() uint16 {
	return c.sock.setup.localPort
}

// SetConsumer registers the task resumed when received datagrams become
// available.
func (c *UDPConn) SetConsumer(t *sched.Task) {
	c.sock.rxStream.SetConsumer(t)
}

// SendTo queues a datagram for transmission to the given address. The
// payload buffer is consumed on success. Only IPv4 destinations are
// supported.
func (c *UDPConn) SendTo(payload *pool.Buffer, addr net.IP, port uint16) Status {
	ip4 := addr.To4()
	if ip4 == nil {
		return StatusUnsupported
	}

	s := c.sock
	if s.phase != phaseUDP {
		return StatusNotOpen
	}
	if payload.Len() > int(s.drv.bufBytes) {
		return StatusOversized
	}

	// The destination rides as a trailer on the queued buffer and is
	// peeled off into the device address registers at transmit time.
	n := payload.Len()
	payload.Append(ip4)
	payload.Append([]byte{byte(port >> 8), byte(port)})

	if !s.txStream.Send(payload) {
		payload.Resize(n)
		return StatusRetry
	}
	return StatusSuccess
}

// ReceiveFrom moves the next received datagram into payload and
// returns its source address.
func (c *UDPConn) ReceiveFrom(payload *pool.Buffer) (net.IP, uint16, Status) {
	s := c.sock
	if s.phase != phaseUDP {
		return nil, 0, StatusNotOpen
	}

	if !s.rxStream.Accept(payload) {
		return nil, 0, StatusRetry
	}

	var header [6]byte
	payload.Read(0, header[:])
	addr := net.IPv4(header[0], header[1], header[2], header[3]).To4()
	port := be16(header[4], header[5])

	payload.Rebase(payload.Len() - udpHeaderSize)
	return addr, port, StatusSuccess
}

// Close initiates an orderly shutdown of the socket.
func (c *UDPConn) Close() Status {
	if c.sock.phase != phaseUDP {
		return StatusNotOpen
	}
	return c.sock.requestClose()
}
