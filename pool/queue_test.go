package pool

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/offloadlab/wiznet/sched"
)

type recordingHook struct {
	items []interface{}
}

func (h *recordingHook) Func(ctx sched.HookCtx) {
	if ctx.Pos == HookPosQueuePush {
		h.items = append(h.items, ctx.Item)
	}
}

var _ = Describe("Queue", func() {
	var queue *Queue

	BeforeEach(func() {
		queue = NewQueue("Queue", 2)
	})

	It("should allow push and pop", func() {
		Expect(queue.Capacity()).To(Equal(2))
		Expect(queue.CanPush()).To(BeTrue())

		queue.Push(1)
		Expect(queue.CanPush()).To(BeTrue())
		Expect(queue.Size()).To(Equal(1))

		queue.Push(2)
		Expect(queue.CanPush()).To(BeFalse())
		Expect(func() {
			queue.Push(3)
		}).To(Panic())

		Expect(queue.Peek()).To(Equal(1))
		Expect(queue.Pop()).To(Equal(1))
		Expect(queue.Pop()).To(Equal(2))
		Expect(queue.Pop()).To(BeNil())
		Expect(queue.Peek()).To(BeNil())
	})

	It("should clear", func() {
		queue.Push(2)

		queue.Clear()

		Expect(queue.Size()).To(Equal(0))
	})

	It("should invoke hooks on push", func() {
		hook := &recordingHook{}
		queue.AcceptHook(hook)

		queue.Push("a")
		queue.Push("b")

		Expect(hook.items).To(Equal([]interface{}{"a", "b"}))
	})

	It("should resume the consumer task on push", func() {
		engine := sched.NewSerialEngine()
		ticks := 0
		task := sched.NewTask("Consumer", engine, func() sched.Status {
			ticks++
			return sched.Suspend()
		})
		queue.SetConsumer(task)

		queue.Push(1)
		_ = engine.Run()

		Expect(ticks).To(Equal(1))
	})
})
