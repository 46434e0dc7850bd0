package driver

import (
	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/spi"
)

func be16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// setRemoteAddr loads the device's remote address registers from the
// trailing six bytes of the payload buffer, then trims them off.
func (s *socket) setRemoteAddr() bool {
	n := s.payload.Len()
	var remote [6]byte
	if !s.payload.Read(n-6, remote[:]) {
		return false
	}

	cmd := spi.InlineCommand(snRemote, s.writeControl(), remote[:]...)
	if !s.drv.enqueue(cmd) {
		return false
	}

	s.payload.Resize(n - 6)
	return true
}

// rxBufferCheck validates a receive buffer status response and sets up
// the transfer window. The three pointer fields are read in one access
// but the device updates them independently, so an inconsistent
// snapshot is re-read rather than treated as an error. A fully drained
// buffer retires the receive interrupt instead.
func (s *socket) rxBufferCheck(rsp *spi.Command, threshold uint16) bool {
	b := rsp.InlineBytes()
	rxSize := be16(b[0], b[1])
	readPtr := be16(b[2], b[3])
	writePtr := be16(b[4], b[5])

	if writePtr-readPtr != rxSize {
		return false
	}
	if rxSize == 0 {
		s.interruptClear |= intReceive
		return false
	}
	if rxSize < threshold {
		return false
	}

	s.active.dataPtr = readPtr
	s.active.limitPtr = readPtr + rxSize
	return true
}

// rxBlockRead issues the bulk transfer that copies the current receive
// window out of the device buffer.
func (s *socket) rxBlockRead() bool {
	if !s.drv.canEnqueue() {
		return false
	}

	size := s.active.limitPtr - s.active.dataPtr
	buf := pool.NewBuffer(int(size))
	cmd := spi.BufferCommand(s.active.dataPtr,
		spi.SocketRxBuffer(s.id)|spi.ControlRead, buf)
	return s.drv.expect(cmd, int8(s.id))
}

// rxBlockCheck takes ownership of the received data block.
func (s *socket) rxBlockCheck(rsp *spi.Command) {
	rsp.Data.MoveTo(&s.payload)
}

// rxPointerWrite advances the device read pointer past the consumed
// receive window.
func (s *socket) rxPointerWrite() bool {
	cmd := spi.InlineCommand(snRxReadPtr, s.writeControl(),
		byte(s.active.limitPtr>>8), byte(s.active.limitPtr))
	return s.drv.enqueue(cmd)
}

// txDataWrite copies the payload buffer into the device transmit
// buffer at the current transfer pointer and advances it.
func (s *socket) txDataWrite() bool {
	if !s.drv.canEnqueue() {
		return false
	}

	size := uint16(s.payload.Len())
	cmd := spi.BufferCommand(s.active.dataPtr,
		spi.SocketTxBuffer(s.id)|spi.ControlWrite|spi.ControlDiscardResponse,
		&s.payload)
	if !s.drv.enqueue(cmd) {
		return false
	}

	s.active.dataPtr += size
	return true
}

// txPointerWrite publishes the end of the written transmit data to the
// device.
func (s *socket) txPointerWrite() bool {
	cmd := spi.InlineCommand(snTxWrite, s.writeControl(),
		byte(s.active.dataPtr>>8), byte(s.active.dataPtr))
	return s.drv.enqueue(cmd)
}
