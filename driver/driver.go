package driver

import (
	"fmt"
	"net"
	"time"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

const maxSockets = 8

// Config carries the device and network parameters for a driver
// instance.
type Config struct {
	// MAC is the station address programmed into the device.
	MAC net.HardwareAddr

	// IP, Gateway and Subnet configure IPv4 addressing.
	IP      net.IP
	Gateway net.IP
	Subnet  net.IP

	// SocketCount limits how many device sockets are used. Fewer
	// sockets get larger device buffers. Defaults to 8.
	SocketCount int

	// QueueDepth bounds the command and response pipeline. Defaults
	// to 8.
	QueueDepth int

	// InterruptInterval is the minimum spacing the device inserts
	// between interrupt assertions. Defaults to 1ms.
	InterruptInterval time.Duration

	// Notify receives driver level notifications such as link state
	// changes.
	Notify NotifyHandler
}

// A Driver manages one network coprocessor: bring-up, interrupt
// multiplexing and the socket pool. Multiple drivers can coexist on
// one engine, each against its own bus.
type Driver struct {
	name   string
	engine sched.Engine

	adaptor   *spi.Adaptor
	core      *sched.Task
	commands  *pool.Queue
	responses *pool.Queue
	expected  *expectRing

	netConfig [netConfigSize]byte
	intConfig [intConfigSize]byte
	mac       net.HardwareAddr

	bufSizeKB byte
	bufBytes  uint16

	notifyHandler NotifyHandler

	coreState   coreState
	bufSocket   int
	linkUp      bool
	pollPending bool

	// socketSelect flags sockets whose interrupt registers still need
	// to be read, as reported by the common interrupt status.
	socketSelect byte

	sockets []*socket
}

// New creates a driver over the given bus. The driver does not touch
// the device until Start is called.
func New(name string, engine sched.Engine, bus spi.Bus, cfg Config) (*Driver, error) {
	if cfg.SocketCount == 0 {
		cfg.SocketCount = maxSockets
	}
	if cfg.SocketCount < 1 || cfg.SocketCount > maxSockets {
		return nil, fmt.Errorf("invalid socket count %d", cfg.SocketCount)
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 8
	}
	if cfg.InterruptInterval == 0 {
		cfg.InterruptInterval = time.Millisecond
	}

	ip4 := cfg.IP.To4()
	gw4 := cfg.Gateway.To4()
	mask4 := cfg.Subnet.To4()
	if ip4 == nil || gw4 == nil || mask4 == nil {
		return nil, fmt.Errorf("network configuration requires IPv4 addresses")
	}
	if len(cfg.MAC) != 6 {
		return nil, fmt.Errorf("invalid MAC address %v", cfg.MAC)
	}

	d := new(Driver)
	d.name = name
	d.engine = engine
	d.mac = append(net.HardwareAddr{}, cfg.MAC...)
	d.notifyHandler = cfg.Notify

	d.adaptor = spi.NewAdaptor(name+".Adaptor", engine, bus, cfg.QueueDepth)
	d.commands = d.adaptor.Commands()
	d.responses = d.adaptor.Responses()
	d.expected = newExpectRing(2*cfg.QueueDepth + 2)

	d.core = sched.NewTask(name+".Core", engine, d.coreTick)
	d.responses.SetConsumer(d.core)

	d.bufSizeKB = bufferSizeKB(cfg.SocketCount)
	d.bufBytes = uint16(d.bufSizeKB) * 1024

	copy(d.netConfig[0:4], gw4)
	copy(d.netConfig[4:8], mask4)
	copy(d.netConfig[8:14], cfg.MAC)
	copy(d.netConfig[14:18], ip4)

	level := interruptLevel(cfg.InterruptInterval)
	d.intConfig = [intConfigSize]byte{
		byte(level >> 8), byte(level), 0, 0, 0,
		byte(1<<cfg.SocketCount - 1),
	}

	for i := 0; i < cfg.SocketCount; i++ {
		s := &socket{id: uint8(i), drv: d}
		capacity := 2 * int(d.bufBytes)
		s.rxStream = pool.NewStream(
			fmt.Sprintf("%s.Socket%d.Rx", name, i), capacity)
		s.txStream = pool.NewStream(
			fmt.Sprintf("%s.Socket%d.Tx", name, i), capacity)
		s.txStream.SetConsumer(d.core)
		d.sockets = append(d.sockets, s)
	}

	return d, nil
}

// bufferSizeKB is the per-socket device buffer allocation for a given
// socket count; the 16KB of device memory is split evenly in powers of
// two.
func bufferSizeKB(count int) byte {
	switch {
	case count <= 1:
		return 16
	case count <= 2:
		return 8
	case count <= 4:
		return 4
	}
	return 2
}

// interruptLevel converts the interrupt spacing to device timer ticks
// of the 150MHz reference divided by four.
func interruptLevel(interval time.Duration) uint16 {
	ticks := interval.Microseconds()*150/4 - 1
	if ticks < 0 {
		ticks = 0
	}
	if ticks > 0xFFFF {
		ticks = 0xFFFF
	}
	return uint16(ticks)
}

// Start begins device bring-up.
func (d *Driver) Start() {
	d.adaptor.Start()
	d.core.Start()
}

// Adaptor exposes the bus command pipeline for instrumentation.
func (d *Driver) Adaptor() *spi.Adaptor {
	return d.adaptor
}

// MACAddr returns the configured station address.
func (d *Driver) MACAddr() net.HardwareAddr {
	return append(net.HardwareAddr{}, d.mac...)
}

// PhyLinkIsUp reports whether the network link came up.
func (d *Driver) PhyLinkIsUp() bool {
	return d.linkUp
}

// SetNetworkInfo rewrites the device's addressing while running. The
// stored configuration only changes once the update is queued, so a
// full pipeline leaves the previous addressing intact.
func (d *Driver) SetNetworkInfo(gateway, subnet, ip net.IP) Status {
	gw4 := gateway.To4()
	mask4 := subnet.To4()
	ip4 := ip.To4()
	if gw4 == nil || mask4 == nil || ip4 == nil {
		return StatusUnsupported
	}
	if d.coreState != coreRunning {
		return StatusNotReady
	}

	var next [netConfigSize]byte
	copy(next[0:4], gw4)
	copy(next[4:8], mask4)
	copy(next[8:14], d.mac)
	copy(next[14:18], ip4)

	buf := pool.NewBuffer(0)
	buf.Append(next[:])
	if !d.enqueue(spi.BufferCommand(regNetConfig, commonWrite(), buf)) {
		return StatusRetry
	}

	d.netConfig = next
	return StatusSuccess
}

// OpenUDP claims a socket for datagram transfer on the given local
// port. UDP sockets are allocated from the top of the socket pool,
// TCP sockets from the bottom, so the two protocols exhaust the pool
// towards each other.
func (d *Driver) OpenUDP(localPort uint16, notify NotifyHandler) (*UDPConn, Status) {
	if !d.linkUp {
		return nil, StatusNotReady
	}

	for i := len(d.sockets) - 1; i >= 0; i-- {
		s := d.sockets[i]
		if !s.free() {
			continue
		}
		d.claim(s, modeUDP, localPort, notify)
		return &UDPConn{sock: s}, StatusSuccess
	}
	return nil, StatusRetry
}

// OpenTCP claims a socket for stream transfer bound to the given local
// port.
func (d *Driver) OpenTCP(localPort uint16, notify NotifyHandler) (*TCPConn, Status) {
	if !d.linkUp {
		return nil, StatusNotReady
	}

	for _, s := range d.sockets {
		if !s.free() {
			continue
		}
		d.claim(s, modeTCP, localPort, notify)
		return &TCPConn{sock: s}, StatusSuccess
	}
	return nil, StatusRetry
}

func (d *Driver) claim(s *socket, mode byte, localPort uint16, notify NotifyHandler) {
	s.mode = mode
	s.setup.localPort = localPort
	s.notifyHandler = notify
	s.closedState = closedSetPort
	d.core.Resume()
}

func (d *Driver) notify(n Notification) {
	if d.notifyHandler != nil {
		d.notifyHandler(n)
	}
}

func (d *Driver) socketMask() byte {
	return byte(1<<len(d.sockets) - 1)
}

func (d *Driver) canEnqueue() bool {
	return d.commands.CanPush()
}

// enqueue submits a command whose response is either discarded or
// matched by shape at dispatch.
func (d *Driver) enqueue(cmd spi.Command) bool {
	if !d.commands.CanPush() {
		return false
	}
	d.commands.Push(cmd)
	return true
}

// expect submits a command and records the response shape it will
// produce, routed to the core or to a socket.
func (d *Driver) expect(cmd spi.Command, route int8) bool {
	if !d.commands.CanPush() {
		return false
	}
	d.expected.push(expectation{
		addr:    cmd.Addr,
		control: cmd.Control,
		size:    cmd.Size,
		route:   route,
	})
	d.commands.Push(cmd)
	return true
}
