package pool

import (
	"github.com/offloadlab/wiznet/sched"
)

// A Stream is a bounded byte-capacity FIFO of buffers. Producers move whole
// buffers in with Send; the consumer moves them out with Accept. A consumer
// task registered on the stream is resumed whenever data arrives, which is
// how a suspended socket worker learns that there is something to transmit.
type Stream struct {
	name     string
	capacity int
	buffered int
	items    []Buffer
	consumer *sched.Task
}

// NewStream creates a stream that admits up to capacity buffered bytes.
func NewStream(name string, capacity int) *Stream {
	s := new(Stream)
	s.name = name
	s.capacity = capacity
	return s
}

// Name returns the name of the stream.
func (s *Stream) Name() string {
	return s.name
}

// SetConsumer registers the task resumed when data is sent to the stream.
func (s *Stream) SetConsumer(t *sched.Task) {
	s.consumer = t
}

// Capacity returns the byte capacity of the stream.
func (s *Stream) Capacity() int {
	return s.capacity
}

// Buffered returns the number of bytes currently queued.
func (s *Stream) Buffered() int {
	return s.buffered
}

// Free returns the number of bytes the stream can still admit.
func (s *Stream) Free() int {
	free := s.capacity - s.buffered
	if free < 0 {
		return 0
	}
	return free
}

// Send moves the buffer into the stream. It returns false without taking
// ownership when the buffer does not fit.
func (s *Stream) Send(b *Buffer) bool {
	if b.Len() > s.capacity-s.buffered {
		return false
	}

	s.admit(b)

	if s.consumer != nil {
		s.consumer.Resume()
	}

	return true
}

// Accept moves the oldest queued buffer into dst, replacing its content.
// It returns false when the stream is empty.
func (s *Stream) Accept(dst *Buffer) bool {
	if len(s.items) == 0 {
		return false
	}

	s.buffered -= s.items[0].Len()
	s.items[0].MoveTo(dst)
	s.items = s.items[1:]

	return true
}

// PushBack returns a buffer to the head of the stream, undoing an Accept
// whose content could not be consumed yet. Unlike Send it always succeeds:
// the bytes were admitted once already.
func (s *Stream) PushBack(b *Buffer) {
	s.items = append(s.items, Buffer{})
	copy(s.items[1:], s.items)

	s.buffered += b.Len()
	b.MoveTo(&s.items[0])
}

func (s *Stream) admit(b *Buffer) {
	s.items = append(s.items, Buffer{})
	s.buffered += b.Len()
	b.MoveTo(&s.items[len(s.items)-1])
}
