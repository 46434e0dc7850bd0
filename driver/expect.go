package driver

import "github.com/offloadlab/wiznet/spi"

// coreRoute marks an expected response consumed by the core worker
// rather than a socket state machine.
const coreRoute int8 = -1

// expectation is the shape of a response the driver is waiting for,
// recorded when the command is submitted. Responses come back in
// command order, so the head of the ring always describes the next
// non-discarded response.
type expectation struct {
	addr    uint16
	control byte
	size    byte
	route   int8
}

// expectRing is a bounded FIFO of expectations. Its capacity covers
// every command that can be pending at once: the command queue, the
// transaction in flight and the response queue.
type expectRing struct {
	entries []expectation
	head    int
	count   int
}

func newExpectRing(capacity int) *expectRing {
	return &expectRing{entries: make([]expectation, capacity)}
}

func (r *expectRing) push(e expectation) {
	if r.count == len(r.entries) {
		panic("expectation ring overflow")
	}

	r.entries[(r.head+r.count)%len(r.entries)] = e
	r.count++
}

func (r *expectRing) pop() (expectation, bool) {
	if r.count == 0 {
		return expectation{}, false
	}

	e := r.entries[r.head]
	r.head = (r.head + 1) % len(r.entries)
	r.count--

	return e, true
}

// matches reports whether the response has the expected shape. Bulk
// responses carry their length in the data buffer and a zero size
// field, so shape equality covers both kinds.
func (e expectation) matches(rsp *spi.Command) bool {
	return rsp.Addr == e.addr &&
		rsp.Control == e.control &&
		rsp.Size == e.size
}
