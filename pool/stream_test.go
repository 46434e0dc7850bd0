package pool

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/offloadlab/wiznet/sched"
)

var _ = Describe("Stream", func() {
	var stream *Stream

	BeforeEach(func() {
		stream = NewStream("Stream", 8)
	})

	It("should move buffers through in order", func() {
		a := NewBuffer(0)
		a.Append([]byte{1, 2})
		b := NewBuffer(0)
		b.Append([]byte{3})

		Expect(stream.Send(a)).To(BeTrue())
		Expect(stream.Send(b)).To(BeTrue())
		Expect(a.Len()).To(Equal(0))
		Expect(stream.Buffered()).To(Equal(3))

		out := new(Buffer)
		Expect(stream.Accept(out)).To(BeTrue())
		Expect(out.Bytes()).To(Equal([]byte{1, 2}))
		Expect(stream.Accept(out)).To(BeTrue())
		Expect(out.Bytes()).To(Equal([]byte{3}))
		Expect(stream.Accept(out)).To(BeFalse())
	})

	It("should refuse buffers beyond capacity", func() {
		big := NewBuffer(9)

		Expect(stream.Send(big)).To(BeFalse())
		Expect(big.Len()).To(Equal(9))
	})

	It("should account free space", func() {
		b := NewBuffer(5)
		Expect(stream.Send(b)).To(BeTrue())

		Expect(stream.Free()).To(Equal(3))
	})

	It("should put back an accepted buffer at the head", func() {
		a := NewBuffer(0)
		a.Append([]byte{1})
		b := NewBuffer(0)
		b.Append([]byte{2})

		Expect(stream.Send(a)).To(BeTrue())
		Expect(stream.Send(b)).To(BeTrue())

		out := new(Buffer)
		Expect(stream.Accept(out)).To(BeTrue())

		stream.PushBack(out)
		Expect(stream.Buffered()).To(Equal(2))

		Expect(stream.Accept(out)).To(BeTrue())
		Expect(out.Bytes()).To(Equal([]byte{1}))
	})

	It("should resume the consumer task when data arrives", func() {
		engine := sched.NewSerialEngine()
		ticks := 0
		task := sched.NewTask("Consumer", engine, func() sched.Status {
			ticks++
			return sched.Suspend()
		})
		stream.SetConsumer(task)

		b := NewBuffer(1)
		Expect(stream.Send(b)).To(BeTrue())

		_ = engine.Run()

		Expect(ticks).To(Equal(1))
	})
})
