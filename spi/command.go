// Package spi implements the single-transaction command pipeline to the
// network coprocessor. Commands carry a 16-bit register address, a control
// byte selecting the target register block, and either a short inline
// payload or a bulk data buffer. The adaptor worker serialises commands
// onto the bus one at a time and routes responses back through a queue.
package spi

import "github.com/offloadlab/wiznet/pool"

// Control byte layout: bits 7..3 select the register block, bit 2 selects
// write access, bits 1..0 are the data mode and always zero on the wire.
// Bit 0 is reused host-side to mark a command whose response should be
// discarded; it is masked off before transmission.
const (
	ControlRead  byte = 0x00
	ControlWrite byte = 0x04

	// ControlDiscardResponse marks a host-local flag, never transmitted.
	ControlDiscardResponse byte = 0x01

	controlDataModeMask byte = 0xFC
)

// CommonRegs returns the control block selector for the common registers.
func CommonRegs() byte {
	return 0x00
}

// SocketRegs returns the control block selector for the register bank of
// the given socket.
func SocketRegs(id uint8) byte {
	return id<<5 | 0x08
}

// SocketTxBuffer returns the control block selector for the transmit
// buffer of the given socket.
func SocketTxBuffer(id uint8) byte {
	return id<<5 | 0x10
}

// SocketRxBuffer returns the control block selector for the receive buffer
// of the given socket.
func SocketRxBuffer(id uint8) byte {
	return id<<5 | 0x18
}

// IsCommonBlock reports whether the control byte targets the common
// register block.
func IsCommonBlock(control byte) bool {
	return control&0xF8 == 0
}

// IsSocketRegs reports whether the control byte targets a socket
// register block rather than a transmit or receive buffer.
func IsSocketRegs(control byte) bool {
	return control&0x18 == 0x08
}

// SocketID extracts the socket index from a socket block selector.
func SocketID(control byte) uint8 {
	return control >> 5
}

// MaxInlineData is the largest payload carried inline in a command.
const MaxInlineData = 8

// A Command is one bus transaction. Size above zero selects the inline
// payload; size zero selects the bulk Data buffer. The same struct comes
// back as the response, with read data filled in.
type Command struct {
	Addr    uint16
	Control byte
	Size    byte
	Inline  [MaxInlineData]byte
	Data    pool.Buffer
}

// InlineCommand builds a command with a short payload. For writes the
// payload is the data to send; for reads it sets the number of bytes to
// fetch and the content is ignored.
func InlineCommand(addr uint16, control byte, data ...byte) Command {
	c := Command{
		Addr:    addr,
		Control: control,
		Size:    byte(len(data)),
	}
	copy(c.Inline[:], data)
	return c
}

// InlineReadCommand builds a read command fetching size bytes inline.
func InlineReadCommand(addr uint16, control byte, size byte) Command {
	return Command{
		Addr:    addr,
		Control: control,
		Size:    size,
	}
}

// BufferCommand builds a bulk transfer command, taking ownership of the
// buffer content. For reads the buffer length sets the transfer size.
func BufferCommand(addr uint16, control byte, data *pool.Buffer) Command {
	c := Command{
		Addr:    addr,
		Control: control,
	}
	data.MoveTo(&c.Data)
	return c
}

// InlineBytes returns the inline payload of the command.
func (c *Command) InlineBytes() []byte {
	return c.Inline[:c.Size]
}

// IsWrite reports whether the command writes to the device.
func (c *Command) IsWrite() bool {
	return c.Control&ControlWrite != 0
}

// DiscardsResponse reports whether the response should be dropped instead
// of routed back.
func (c *Command) DiscardsResponse() bool {
	return c.Control&ControlDiscardResponse != 0
}
