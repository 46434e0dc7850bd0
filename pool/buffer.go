// Package pool provides the byte buffers, byte streams and bounded queues
// that carry payload data between the socket layer, the driver workers and
// the bus adaptor. Buffers hand ownership over explicitly with MoveTo so a
// payload crosses a queue or stream without copying.
package pool

// SegmentSize is the transfer granularity of the bus adaptor. Buffer
// capacity grows in whole segments and bulk bus transfers are issued one
// segment at a time.
const SegmentSize = 64

// A Buffer is a growable byte buffer with segment-granular capacity.
// The zero value is an empty buffer ready for use.
type Buffer struct {
	data []byte
}

// NewBuffer creates a buffer holding n zero bytes.
func NewBuffer(n int) *Buffer {
	b := new(Buffer)
	b.Resize(n)
	return b
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Reset drops the buffer content, keeping the allocated capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Resize sets the buffer length to n, zero-extending when growing.
func (b *Buffer) Resize(n int) {
	if n <= cap(b.data) {
		old := len(b.data)
		b.data = b.data[:n]
		for i := old; i < n; i++ {
			b.data[i] = 0
		}
		return
	}

	grown := make([]byte, n, roundToSegments(n))
	copy(grown, b.data)
	b.data = grown
}

// Append adds the given bytes to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	old := len(b.data)
	b.Resize(old + len(p))
	copy(b.data[old:], p)
}

// AppendByte adds a single byte to the end of the buffer.
func (b *Buffer) AppendByte(c byte) {
	b.Append([]byte{c})
}

// Read copies len(p) bytes starting at offset into p. It returns false if
// the range falls outside the buffer.
func (b *Buffer) Read(offset int, p []byte) bool {
	if offset < 0 || offset+len(p) > len(b.data) {
		return false
	}

	copy(p, b.data[offset:])
	return true
}

// Write copies p into the buffer starting at offset. It returns false if
// the range falls outside the buffer.
func (b *Buffer) Write(offset int, p []byte) bool {
	if offset < 0 || offset+len(p) > len(b.data) {
		return false
	}

	copy(b.data[offset:], p)
	return true
}

// Rebase resizes the buffer to n bytes by adding or removing bytes at the
// front. Shrinking keeps the last n bytes; it is how a receive path strips
// a protocol header.
func (b *Buffer) Rebase(n int) {
	if n < 0 {
		n = 0
	}

	if n <= len(b.data) {
		copy(b.data, b.data[len(b.data)-n:])
		b.data = b.data[:n]
		return
	}

	grown := make([]byte, n, roundToSegments(n))
	copy(grown[n-len(b.data):], b.data)
	b.data = grown
}

// MoveTo transfers the buffer content to dst, replacing whatever dst held.
// The receiver is left empty.
func (b *Buffer) MoveTo(dst *Buffer) {
	dst.data = b.data
	b.data = nil
}

// Segment returns a view of up to one segment of the buffer starting at
// offset, or nil when offset is past the end.
func (b *Buffer) Segment(offset int) []byte {
	if offset < 0 || offset >= len(b.data) {
		return nil
	}

	end := offset + SegmentSize
	if end > len(b.data) {
		end = len(b.data)
	}

	return b.data[offset:end]
}

// Bytes returns a direct view of the buffer content.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func roundToSegments(n int) int {
	return (n + SegmentSize - 1) / SegmentSize * SegmentSize
}
