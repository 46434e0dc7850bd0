package driver

import (
	"bytes"
	"log"
	"math/bits"
	"time"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/spi"
)

// coreState sequences device bring-up. Each configuration write is read
// back and verified before moving on; a mismatch is unrecoverable.
type coreState uint8

const (
	coreVersionRead coreState = iota
	coreVersionCheck
	coreNetConfigSet
	coreNetConfigVerify
	coreNetConfigCheck
	coreBufferSizeSet
	coreBufferSizeVerify
	coreBufferSizeCheck
	coreIntSetup
	coreIntVerify
	coreIntCheck
	corePhyRead
	corePhyCheck
	corePhyWait
	coreRunning
	coreError
)

const (
	// phyRetryInterval paces link polling while waiting for the network
	// cable.
	phyRetryInterval = 250 * time.Millisecond

	// intPollInterval bounds how long the core goes without re-reading
	// the common interrupt status after socket interrupt activity.
	intPollInterval = 5 * time.Second
)

func commonRead() byte {
	return spi.CommonRegs() | spi.ControlRead
}

func commonWrite() byte {
	return spi.CommonRegs() | spi.ControlWrite | spi.ControlDiscardResponse
}

func (d *Driver) coreTick() sched.Status {
	d.drainResponses()

	switch d.coreState {
	case coreVersionRead:
		cmd := spi.InlineReadCommand(regVersion, commonRead(), 1)
		if !d.expect(cmd, coreRoute) {
			return retryLater()
		}
		d.coreState = coreVersionCheck
		return sched.Suspend()

	// Verification states wait on the response callback.
	case coreVersionCheck, coreNetConfigCheck, coreBufferSizeCheck,
		coreIntCheck, corePhyCheck:
		return sched.Suspend()

	case coreNetConfigSet:
		buf := pool.NewBuffer(0)
		buf.Append(d.netConfig[:])
		cmd := spi.BufferCommand(regNetConfig, commonWrite(), buf)
		if !d.enqueue(cmd) {
			return retryLater()
		}
		d.coreState = coreNetConfigVerify
		return sched.RunImmediate()

	case coreNetConfigVerify:
		buf := pool.NewBuffer(netConfigSize)
		cmd := spi.BufferCommand(regNetConfig, commonRead(), buf)
		if !d.expect(cmd, coreRoute) {
			return retryLater()
		}
		d.coreState = coreNetConfigCheck
		return sched.Suspend()

	case coreBufferSizeSet:
		id := uint8(d.bufSocket)
		cmd := spi.InlineCommand(snBufSize,
			spi.SocketRegs(id)|spi.ControlWrite|spi.ControlDiscardResponse,
			d.bufSizeKB, d.bufSizeKB)
		if !d.enqueue(cmd) {
			return retryLater()
		}
		d.coreState = coreBufferSizeVerify
		return sched.RunImmediate()

	case coreBufferSizeVerify:
		id := uint8(d.bufSocket)
		buf := pool.NewBuffer(bufConfigSize)
		cmd := spi.BufferCommand(snBufSize,
			spi.SocketRegs(id)|spi.ControlRead, buf)
		if !d.expect(cmd, coreRoute) {
			return retryLater()
		}
		d.coreState = coreBufferSizeCheck
		return sched.Suspend()

	case coreIntSetup:
		cmd := spi.InlineCommand(regIntConfig, commonWrite(),
			d.intConfig[:]...)
		if !d.enqueue(cmd) {
			return retryLater()
		}
		d.coreState = coreIntVerify
		return sched.RunImmediate()

	case coreIntVerify:
		cmd := spi.InlineReadCommand(regIntConfig, commonRead(),
			intConfigSize)
		if !d.expect(cmd, coreRoute) {
			return retryLater()
		}
		d.coreState = coreIntCheck
		return sched.Suspend()

	case corePhyRead:
		cmd := spi.InlineReadCommand(regPhyStatus, commonRead(), 1)
		if !d.expect(cmd, coreRoute) {
			return retryLater()
		}
		d.coreState = corePhyCheck
		return sched.Suspend()

	case corePhyWait:
		d.coreState = corePhyRead
		return sched.RunAfter(phyRetryInterval)

	case coreRunning:
		return d.tickRunning()

	case coreError:
		log.Panic("network driver ticked in unrecoverable error state")
	}
	return sched.Suspend()
}

// tickRunning multiplexes the device interrupt sources. Flagged socket
// interrupt registers are read one per pass; once drained, the common
// interrupt status is re-read to catch events that arrived in between.
// The sockets are then all given a processing pass.
func (d *Driver) tickRunning() sched.Status {
	status := sched.Suspend()

	if d.socketSelect != 0 {
		id := uint8(bits.TrailingZeros8(d.socketSelect))
		cmd := spi.InlineReadCommand(snInterrupt,
			spi.SocketRegs(id)|spi.ControlRead, 2)
		if d.enqueue(cmd) {
			d.socketSelect &^= 1 << id
			if d.socketSelect != 0 {
				status = sched.RunImmediate()
			} else {
				d.pollPending = true
				status = sched.RunAfter(intPollInterval)
			}
		} else {
			status = retryLater()
		}
	} else if d.pollPending {
		intCmd := spi.InlineReadCommand(regIntStatus, commonRead(),
			intStatusSize)
		phyCmd := spi.InlineReadCommand(regPhyStatus, commonRead(), 1)
		if d.enqueue(intCmd) && d.expect(phyCmd, coreRoute) {
			d.pollPending = false
		} else {
			status = retryLater()
		}
	}

	for _, s := range d.sockets {
		status = sched.Prioritise(status, s.tick())
	}
	return status
}

func (d *Driver) drainResponses() {
	for {
		item := d.responses.Pop()
		if item == nil {
			return
		}
		rsp := item.(spi.Command)
		d.dispatch(&rsp)
	}
}

// dispatch routes one response. Interrupt status responses are matched
// by shape because the adaptor issues some of them autonomously; every
// other response must match the head of the expectation ring.
func (d *Driver) dispatch(rsp *spi.Command) {
	if !rsp.IsWrite() && spi.IsCommonBlock(rsp.Control) &&
		rsp.Addr == regIntStatus && rsp.Size == intStatusSize {
		d.socketSelect |= rsp.Inline[2] & d.socketMask()
		return
	}

	// The block selector is part of the shape: a receive buffer read can
	// land on the same address when its ring pointer wraps.
	if !rsp.IsWrite() && spi.IsSocketRegs(rsp.Control) &&
		rsp.Addr == snInterrupt && rsp.Size == 2 {
		id := spi.SocketID(rsp.Control)
		if int(id) < len(d.sockets) {
			d.sockets[id].interruptFlags |= rsp.Inline[0]
		}
		return
	}

	exp, ok := d.expected.pop()
	if !ok {
		d.configError("unexpected response with no pending expectation")
		return
	}
	if !exp.matches(rsp) {
		if exp.route == coreRoute {
			d.configError("response sequence error")
		} else {
			d.sockets[exp.route].sequenceError()
		}
		return
	}

	if exp.route == coreRoute {
		d.coreResponse(rsp)
	} else {
		d.sockets[exp.route].processResponse(rsp)
	}
}

func (d *Driver) coreResponse(rsp *spi.Command) {
	switch d.coreState {
	case coreVersionCheck:
		if rsp.Inline[0] != versionID {
			d.configError("unexpected device version")
			return
		}
		d.coreState = coreNetConfigSet

	case coreNetConfigCheck:
		if !bytes.Equal(rsp.Data.Bytes(), d.netConfig[:]) {
			d.configError("network configuration readback mismatch")
			return
		}
		d.bufSocket = 0
		d.coreState = coreBufferSizeSet

	case coreBufferSizeCheck:
		if !d.bufferConfigValid(rsp.Data.Bytes()) {
			d.configError("socket buffer configuration readback mismatch")
			return
		}
		d.bufSocket++
		if d.bufSocket < len(d.sockets) {
			d.coreState = coreBufferSizeSet
		} else {
			d.coreState = coreIntSetup
		}

	case coreIntCheck:
		if !bytes.Equal(rsp.InlineBytes(), d.intConfig[:]) {
			d.configError("interrupt configuration readback mismatch")
			return
		}
		d.coreState = corePhyRead

	case corePhyCheck:
		d.phyCheck(rsp.Inline[0])

	case coreRunning:
		d.linkCheck(rsp.Inline[0])

	default:
		d.configError("response in unexpected bring-up state")
	}
}

// bufferConfigValid verifies the buffer configuration block readback:
// both buffer sizes, the derived free space and zeroed transfer
// pointers.
func (d *Driver) bufferConfigValid(b []byte) bool {
	if len(b) != bufConfigSize {
		return false
	}
	if b[0] != d.bufSizeKB || b[1] != d.bufSizeKB {
		return false
	}
	if be16(b[2], b[3]) != d.bufBytes {
		return false
	}
	for _, v := range b[4:] {
		if v != 0 {
			return false
		}
	}
	return true
}

func (d *Driver) phyCheck(phy byte) {
	if phy&phyLinkUp == 0 {
		d.coreState = corePhyWait
		return
	}

	speed := "10M"
	if phy&phySpeed100 != 0 {
		speed = "100M"
	}
	duplex := "half"
	if phy&phyFullDuplex != 0 {
		duplex = "full"
	}
	log.Printf("%s: phy link up (%s, %s duplex)", d.name, speed, duplex)

	d.linkUp = true
	d.notify(NotifyPhyLinkUp)

	// Enter the running state with an interrupt status poll pending in
	// case anything fired during bring-up.
	d.pollPending = true
	d.coreState = coreRunning
}

// linkCheck watches for link transitions while running. A change is
// fanned out to the driver handler and to every open socket.
func (d *Driver) linkCheck(phy byte) {
	up := phy&phyLinkUp != 0
	if up == d.linkUp {
		return
	}

	d.linkUp = up
	n := NotifyPhyLinkDown
	state := "down"
	if up {
		n = NotifyPhyLinkUp
		state = "up"
	}
	log.Printf("%s: phy link %s", d.name, state)

	d.notify(n)
	for _, s := range d.sockets {
		if !s.free() {
			s.notify(n)
		}
	}
}

func (d *Driver) configError(msg string) {
	log.Printf("%s: %s", d.name, msg)
	d.coreState = coreError
}
