// Package devsim provides a register-level simulation of the network
// coprocessor behind the spi.Bus interface. It models the common and
// socket register files and the per-socket transfer rings, executes
// socket commands as they are written, and raises the interrupt line
// the way the hardware does. Tests and the demo CLI run the full
// driver stack against it, several instances at a time if needed.
package devsim

import (
	"net"

	"github.com/offloadlab/wiznet/spi"
)

const socketCount = 8

// Socket protocol modes, matching the device mode register.
const (
	ModeTCP byte = 0x01
	ModeUDP byte = 0x02
)

// Socket commands, matching the device command register.
const (
	CmdOpen       byte = 0x01
	CmdConnect    byte = 0x04
	CmdDisconnect byte = 0x08
	CmdClose      byte = 0x10
	CmdSend       byte = 0x20
	CmdReceive    byte = 0x40
)

// Socket status values.
const (
	statusClosed      byte = 0x00
	statusInitTCP     byte = 0x13
	statusEstablished byte = 0x17
	statusCloseWait   byte = 0x1C
	statusOpenUDP     byte = 0x22
)

// Socket interrupt bits.
const (
	intConnected  byte = 0x01
	intDisconnect byte = 0x02
	intReceive    byte = 0x04
	intTimeout    byte = 0x08
	intSendOK     byte = 0x10
)

const versionID byte = 0x04

// ConnectOutcome is the scripted result of a TCP connection attempt.
type ConnectOutcome int

const (
	// ConnectAccept establishes the connection.
	ConnectAccept ConnectOutcome = iota

	// ConnectTimeout simulates an unanswered handshake.
	ConnectTimeout

	// ConnectRefuse simulates the remote end dropping the connection.
	ConnectRefuse
)

// A Packet is one transmission captured from the device.
type Packet struct {
	Socket   int
	Mode     byte
	Dest     net.IP
	DestPort uint16
	Data     []byte
}

// A SocketCommand is one command register write, kept in execution
// order for assertions on command sequencing.
type SocketCommand struct {
	Socket  int
	Command byte
}

type simSocket struct {
	mode       byte
	ir, imr    byte
	sr         byte
	localPort  [2]byte
	remote     [6]byte
	rxKB, txKB byte

	tx, rx     []byte
	txRD, txWR uint16
	rxRD, rxWR uint16
}

func (s *simSocket) rxPending() uint16 {
	return s.rxWR - s.rxRD
}

func (s *simSocket) txFree() uint16 {
	return uint16(len(s.tx)) - (s.txWR - s.txRD)
}

// A Device simulates one coprocessor on a bus. The zero configuration
// has the link up and accepts TCP connections; scripts adjust the
// exported fields before or between engine runs.
type Device struct {
	// LinkDown holds the PHY link down until cleared.
	LinkDown bool

	// FailNextSend makes the next send command time out instead of
	// completing.
	FailNextSend bool

	// ConnectPolicy decides TCP connection attempts. Nil accepts all.
	ConnectPolicy func(socket int, addr net.IP, port uint16) ConnectOutcome

	// Sent collects every transmission the device performed.
	Sent []Packet

	// CommandLog collects every socket command in execution order.
	CommandLog []SocketCommand

	netConfig [18]byte
	intLevel  [2]byte
	commonIR  byte
	commonIMR byte
	simr      byte

	sockets [socketCount]*simSocket

	selected    bool
	inReset     bool
	headerCount int
	addr        uint16
	control     byte

	transferDone func()
	interrupt    func()
}

// NewDevice creates a device in its power-on state.
func NewDevice() *Device {
	d := new(Device)
	d.powerOn()
	return d
}

func (d *Device) powerOn() {
	d.netConfig = [18]byte{}
	d.intLevel = [2]byte{}
	d.commonIR = 0
	d.commonIMR = 0
	d.simr = 0
	for i := range d.sockets {
		d.sockets[i] = &simSocket{
			rxKB: 2,
			txKB: 2,
			tx:   make([]byte, 2048),
			rx:   make([]byte, 2048),
		}
	}
}

// Select implements spi.Bus.
func (d *Device) Select() bool {
	if d.selected {
		return false
	}
	d.selected = true
	d.headerCount = 0
	return true
}

// Release implements spi.Bus.
func (d *Device) Release() bool {
	d.selected = false
	return true
}

// WriteInline implements spi.Bus. The first three bytes of a selection
// form the transaction header; the rest are register data.
func (d *Device) WriteInline(p []byte) spi.Status {
	for _, b := range p {
		d.writeByte(b)
	}
	return spi.StatusOK
}

// ReadInline implements spi.Bus.
func (d *Device) ReadInline(p []byte) spi.Status {
	for i := range p {
		p[i] = d.readByte()
	}
	return spi.StatusOK
}

// StartWrite implements spi.Bus; transfers complete synchronously.
func (d *Device) StartWrite(p []byte) bool {
	d.WriteInline(p)
	d.transferDone()
	return true
}

// StartRead implements spi.Bus.
func (d *Device) StartRead(p []byte) bool {
	d.ReadInline(p)
	d.transferDone()
	return true
}

// Poll implements spi.Bus.
func (d *Device) Poll() spi.Status {
	return spi.StatusOK
}

// SetReset implements spi.Bus. Asserting reset restores the power-on
// register state.
func (d *Device) SetReset(asserted bool) {
	d.inReset = asserted
	if asserted {
		d.powerOn()
	}
}

// Bind implements spi.Bus.
func (d *Device) Bind(transferDone func(), interrupt func()) {
	d.transferDone = transferDone
	d.interrupt = interrupt
}

func (d *Device) writeByte(b byte) {
	if d.headerCount < 3 {
		switch d.headerCount {
		case 0:
			d.addr = uint16(b) << 8
		case 1:
			d.addr |= uint16(b)
		case 2:
			d.control = b
		}
		d.headerCount++
		return
	}

	if d.inReset || d.control&spi.ControlWrite == 0 {
		d.addr++
		return
	}

	addr := d.addr
	d.addr++

	if spi.IsCommonBlock(d.control) {
		d.writeCommon(addr, b)
		return
	}

	id := int(spi.SocketID(d.control))
	s := d.sockets[id]
	switch d.control &^ (0xE0 | spi.ControlWrite) {
	case 0x08:
		d.writeSocketReg(id, s, addr, b)
	case 0x10:
		s.tx[addr&uint16(len(s.tx)-1)] = b
	}
}

func (d *Device) readByte() byte {
	if d.headerCount < 3 {
		return 0
	}

	addr := d.addr
	d.addr++

	if d.inReset {
		return 0
	}

	if spi.IsCommonBlock(d.control) {
		return d.readCommon(addr)
	}

	s := d.sockets[spi.SocketID(d.control)]
	switch d.control &^ (0xE0 | spi.ControlWrite) {
	case 0x08:
		return d.readSocketReg(s, addr)
	case 0x10:
		return s.tx[addr&uint16(len(s.tx)-1)]
	case 0x18:
		return s.rx[addr&uint16(len(s.rx)-1)]
	}
	return 0
}

func (d *Device) writeCommon(addr uint16, b byte) {
	switch {
	case addr >= 0x0001 && addr <= 0x0012:
		d.netConfig[addr-1] = b
	case addr == 0x0013:
		d.intLevel[0] = b
	case addr == 0x0014:
		d.intLevel[1] = b
	case addr == 0x0015:
		d.commonIR &^= b
	case addr == 0x0016:
		d.commonIMR = b
	case addr == 0x0018:
		d.simr = b
	}
}

func (d *Device) readCommon(addr uint16) byte {
	switch {
	case addr >= 0x0001 && addr <= 0x0012:
		return d.netConfig[addr-1]
	case addr == 0x0013:
		return d.intLevel[0]
	case addr == 0x0014:
		return d.intLevel[1]
	case addr == 0x0015:
		return d.commonIR
	case addr == 0x0016:
		return d.commonIMR
	case addr == 0x0017:
		return d.sir()
	case addr == 0x0018:
		return d.simr
	case addr == 0x002E:
		if d.LinkDown {
			return 0
		}
		return 0x07 // link up, 100M, full duplex
	case addr == 0x0039:
		return versionID
	}
	return 0
}

func (d *Device) writeSocketReg(id int, s *simSocket, addr uint16, b byte) {
	switch addr {
	case 0x0000:
		s.mode = b
	case 0x0001:
		d.execCommand(id, s, b)
	case 0x0002:
		s.ir &^= b
	case 0x0004:
		s.localPort[0] = b
	case 0x0005:
		s.localPort[1] = b
	case 0x001E:
		s.rxKB = b
		s.rx = make([]byte, int(b)*1024)
		s.rxRD, s.rxWR = 0, 0
	case 0x001F:
		s.txKB = b
		s.tx = make([]byte, int(b)*1024)
		s.txRD, s.txWR = 0, 0
	case 0x0024:
		s.txWR = s.txWR&0x00FF | uint16(b)<<8
	case 0x0025:
		s.txWR = s.txWR&0xFF00 | uint16(b)
	case 0x0028:
		s.rxRD = s.rxRD&0x00FF | uint16(b)<<8
	case 0x0029:
		s.rxRD = s.rxRD&0xFF00 | uint16(b)
	case 0x002C:
		s.imr = b
	default:
		if addr >= 0x000C && addr <= 0x0011 {
			s.remote[addr-0x000C] = b
		}
	}
}

func (d *Device) readSocketReg(s *simSocket, addr uint16) byte {
	switch addr {
	case 0x0000:
		return s.mode
	case 0x0002:
		return s.ir
	case 0x0003:
		return s.sr
	case 0x0004:
		return s.localPort[0]
	case 0x0005:
		return s.localPort[1]
	case 0x001E:
		return s.rxKB
	case 0x001F:
		return s.txKB
	case 0x0020:
		return byte(s.txFree() >> 8)
	case 0x0021:
		return byte(s.txFree())
	case 0x0022:
		return byte(s.txRD >> 8)
	case 0x0023:
		return byte(s.txRD)
	case 0x0024:
		return byte(s.txWR >> 8)
	case 0x0025:
		return byte(s.txWR)
	case 0x0026:
		return byte(s.rxPending() >> 8)
	case 0x0027:
		return byte(s.rxPending())
	case 0x0028:
		return byte(s.rxRD >> 8)
	case 0x0029:
		return byte(s.rxRD)
	case 0x002A:
		return byte(s.rxWR >> 8)
	case 0x002B:
		return byte(s.rxWR)
	case 0x002C:
		return s.imr
	default:
		if addr >= 0x000C && addr <= 0x0011 {
			return s.remote[addr-0x000C]
		}
	}
	return 0
}

func (d *Device) execCommand(id int, s *simSocket, cmd byte) {
	d.CommandLog = append(d.CommandLog, SocketCommand{Socket: id, Command: cmd})

	switch cmd {
	case CmdOpen:
		if s.mode == ModeTCP {
			s.sr = statusInitTCP
		} else {
			s.sr = statusOpenUDP
		}
		s.txRD, s.txWR = 0, 0
		s.rxRD, s.rxWR = 0, 0

	case CmdConnect:
		outcome := ConnectAccept
		if d.ConnectPolicy != nil {
			addr := net.IPv4(s.remote[0], s.remote[1], s.remote[2],
				s.remote[3]).To4()
			port := uint16(s.remote[4])<<8 | uint16(s.remote[5])
			outcome = d.ConnectPolicy(id, addr, port)
		}
		switch outcome {
		case ConnectAccept:
			s.sr = statusEstablished
			s.ir |= intConnected
		case ConnectTimeout:
			s.sr = statusClosed
			s.ir |= intTimeout
		case ConnectRefuse:
			s.sr = statusClosed
			s.ir |= intDisconnect
		}

	case CmdDisconnect:
		s.sr = statusClosed
		s.ir |= intDisconnect

	case CmdClose:
		s.sr = statusClosed

	case CmdSend:
		d.deliver(id, s)

	case CmdReceive:
		if s.rxPending() > 0 {
			s.ir |= intReceive
		}
	}
	d.raise(s)
}

// deliver captures the transmit window as one outbound packet and
// raises the send outcome interrupt.
func (d *Device) deliver(id int, s *simSocket) {
	length := s.txWR - s.txRD
	data := make([]byte, length)
	for i := range data {
		data[i] = s.tx[(s.txRD+uint16(i))&uint16(len(s.tx)-1)]
	}
	s.txRD = s.txWR

	if d.FailNextSend {
		d.FailNextSend = false
		s.ir |= intTimeout
		return
	}

	d.Sent = append(d.Sent, Packet{
		Socket: id,
		Mode:   s.mode,
		Dest: net.IPv4(s.remote[0], s.remote[1], s.remote[2],
			s.remote[3]).To4(),
		DestPort: uint16(s.remote[4])<<8 | uint16(s.remote[5]),
		Data:     data,
	})
	s.ir |= intSendOK
}

// sir computes the socket interrupt summary register.
func (d *Device) sir() byte {
	var v byte
	for i, s := range d.sockets {
		if s.ir&s.imr != 0 {
			v |= 1 << i
		}
	}
	return v
}

// raise asserts the interrupt line when a masked-in socket interrupt
// is pending.
func (d *Device) raise(s *simSocket) {
	if d.interrupt == nil || d.inReset {
		return
	}
	if d.sir()&d.simr != 0 && s.ir&s.imr != 0 {
		d.interrupt()
	}
}

func (d *Device) pushRx(s *simSocket, data []byte) {
	for _, b := range data {
		s.rx[s.rxWR&uint16(len(s.rx)-1)] = b
		s.rxWR++
	}
}

// InjectUDP queues an inbound datagram on the given socket, with the
// source address and payload length header the device prepends.
func (d *Device) InjectUDP(socket int, src net.IP, srcPort uint16, payload []byte) {
	s := d.sockets[socket]
	src4 := src.To4()

	header := []byte{
		src4[0], src4[1], src4[2], src4[3],
		byte(srcPort >> 8), byte(srcPort),
		byte(len(payload) >> 8), byte(len(payload)),
	}
	d.pushRx(s, header)
	d.pushRx(s, payload)

	s.ir |= intReceive
	d.raise(s)
}

// InjectTCP queues inbound stream data on the given socket.
func (d *Device) InjectTCP(socket int, payload []byte) {
	s := d.sockets[socket]
	d.pushRx(s, payload)
	s.ir |= intReceive
	d.raise(s)
}

// RemoteClose simulates the remote end closing an established TCP
// connection.
func (d *Device) RemoteClose(socket int) {
	s := d.sockets[socket]
	s.sr = statusCloseWait
	s.ir |= intDisconnect
	d.raise(s)
}

// SocketStatus returns the socket status register value, for test
// assertions.
func (d *Device) SocketStatus(socket int) byte {
	return d.sockets[socket].sr
}

// NetConfig returns the programmed addressing block: gateway, subnet
// mask, station address and local address.
func (d *Device) NetConfig() [18]byte {
	return d.netConfig
}
