package spi

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
)

// scriptedBus records every byte sequence the adaptor writes and serves
// reads from a scripted queue. Bulk transfers complete synchronously
// through the bound callback.
type scriptedBus struct {
	selected      bool
	resetAsserted bool
	notReady      int

	frames  [][]byte
	current []byte

	readScript [][]byte

	transferDone func()
	interrupt    func()
}

func (b *scriptedBus) Select() bool {
	if b.selected {
		return false
	}
	b.selected = true
	b.current = nil
	return true
}

func (b *scriptedBus) Release() bool {
	b.selected = false
	b.frames = append(b.frames, b.current)
	b.current = nil
	return true
}

func (b *scriptedBus) WriteInline(p []byte) Status {
	if b.notReady > 0 {
		b.notReady--
		return StatusNotReady
	}
	b.current = append(b.current, p...)
	return StatusOK
}

func (b *scriptedBus) ReadInline(p []byte) Status {
	b.serveRead(p)
	return StatusOK
}

func (b *scriptedBus) StartWrite(p []byte) bool {
	b.current = append(b.current, p...)
	b.transferDone()
	return true
}

func (b *scriptedBus) StartRead(p []byte) bool {
	b.serveRead(p)
	b.transferDone()
	return true
}

func (b *scriptedBus) Poll() Status {
	return StatusOK
}

func (b *scriptedBus) SetReset(asserted bool) {
	b.resetAsserted = asserted
}

func (b *scriptedBus) Bind(transferDone func(), interrupt func()) {
	b.transferDone = transferDone
	b.interrupt = interrupt
}

func (b *scriptedBus) serveRead(p []byte) {
	if len(b.readScript) == 0 {
		return
	}
	copy(p, b.readScript[0])
	if len(b.readScript[0]) > len(p) {
		b.readScript[0] = b.readScript[0][len(p):]
	} else {
		b.readScript = b.readScript[1:]
	}
}

var _ = Describe("Adaptor", func() {
	var (
		engine  *sched.SerialEngine
		bus     *scriptedBus
		adaptor *Adaptor
	)

	BeforeEach(func() {
		engine = sched.NewSerialEngine()
		bus = &scriptedBus{}
		adaptor = NewAdaptor("Adaptor", engine, bus, 4)
		adaptor.Start()
	})

	It("should frame an inline write", func() {
		cmd := InlineCommand(0x0004,
			SocketRegs(1)|ControlWrite|ControlDiscardResponse,
			0x12, 0x34)
		adaptor.Commands().Push(cmd)

		_ = engine.Run()

		Expect(bus.frames).To(HaveLen(1))
		Expect(bus.frames[0]).To(Equal(
			[]byte{0x00, 0x04, SocketRegs(1) | ControlWrite, 0x12, 0x34}))
		Expect(adaptor.Responses().Size()).To(Equal(0))
	})

	It("should route an inline read response back", func() {
		bus.readScript = [][]byte{{0x04}}

		cmd := InlineReadCommand(0x0039, CommonRegs()|ControlRead, 1)
		adaptor.Commands().Push(cmd)

		_ = engine.Run()

		Expect(adaptor.Responses().Size()).To(Equal(1))
		rsp := adaptor.Responses().Pop().(Command)
		Expect(rsp.Addr).To(Equal(uint16(0x0039)))
		Expect(rsp.InlineBytes()).To(Equal([]byte{0x04}))
	})

	It("should move a bulk payload segment by segment", func() {
		payload := pool.NewBuffer(0)
		data := make([]byte, pool.SegmentSize+20)
		for i := range data {
			data[i] = byte(i)
		}
		payload.Append(data)

		cmd := BufferCommand(0x0000,
			SocketTxBuffer(0)|ControlWrite|ControlDiscardResponse,
			payload)
		adaptor.Commands().Push(cmd)

		_ = engine.Run()

		Expect(bus.frames).To(HaveLen(1))
		Expect(bus.frames[0][3:]).To(Equal(data))
	})

	It("should fill a bulk read buffer", func() {
		bus.readScript = [][]byte{{9, 9, 9, 9, 9}}

		payload := pool.NewBuffer(5)
		cmd := BufferCommand(0x0010, SocketRxBuffer(0)|ControlRead, payload)
		adaptor.Commands().Push(cmd)

		_ = engine.Run()

		Expect(adaptor.Responses().Size()).To(Equal(1))
		rsp := adaptor.Responses().Pop().(Command)
		Expect(rsp.Data.Bytes()).To(Equal([]byte{9, 9, 9, 9, 9}))
	})

	It("should read interrupt status ahead of queued commands", func() {
		_ = engine.Run()

		adaptor.Commands().Push(InlineCommand(0x0001,
			CommonRegs()|ControlWrite|ControlDiscardResponse, 0x55))
		bus.interrupt()

		_ = engine.Run()

		Expect(bus.frames).To(HaveLen(2))
		Expect(bus.frames[0][:3]).To(Equal(
			[]byte{0x00, 0x15, CommonRegs() | ControlRead}))
		Expect(bus.frames[1][:3]).To(Equal(
			[]byte{0x00, 0x01, CommonRegs() | ControlWrite}))
	})

	It("should advance time while retrying a bus that is not ready", func() {
		_ = engine.Run()
		settled := engine.CurrentTime()

		bus.notReady = 3
		adaptor.Commands().Push(InlineCommand(0x0001,
			CommonRegs()|ControlWrite|ControlDiscardResponse, 0x55))

		_ = engine.Run()

		Expect(bus.frames).To(HaveLen(1))
		Expect(engine.CurrentTime()).To(BeNumerically(">=",
			settled+3*busRetryInterval))
	})

	It("should sequence reset before the first transaction", func() {
		Expect(bus.resetAsserted).To(BeFalse())

		_ = engine.RunUntil(0)
		Expect(bus.resetAsserted).To(BeTrue())

		_ = engine.Run()
		Expect(bus.resetAsserted).To(BeFalse())
		Expect(engine.CurrentTime()).To(BeNumerically(">=", resetHoldTime+startupTime))
	})
})
