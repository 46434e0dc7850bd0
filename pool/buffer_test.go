package pool

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Buffer", func() {
	var buf *Buffer

	BeforeEach(func() {
		buf = new(Buffer)
	})

	It("should append and read back", func() {
		buf.Append([]byte{1, 2, 3})
		buf.AppendByte(4)

		Expect(buf.Len()).To(Equal(4))

		got := make([]byte, 4)
		Expect(buf.Read(0, got)).To(BeTrue())
		Expect(got).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should reject out-of-range reads and writes", func() {
		buf.Resize(4)

		Expect(buf.Read(2, make([]byte, 3))).To(BeFalse())
		Expect(buf.Read(-1, make([]byte, 1))).To(BeFalse())
		Expect(buf.Write(3, []byte{1, 2})).To(BeFalse())
	})

	It("should write in place", func() {
		buf.Resize(6)

		Expect(buf.Write(2, []byte{9, 8})).To(BeTrue())
		Expect(buf.Bytes()).To(Equal([]byte{0, 0, 9, 8, 0, 0}))
	})

	It("should zero-extend on resize", func() {
		buf.Append([]byte{1, 2})
		buf.Resize(1)
		buf.Resize(3)

		Expect(buf.Bytes()).To(Equal([]byte{1, 0, 0}))
	})

	It("should keep the tail when rebasing smaller", func() {
		buf.Append([]byte{1, 2, 3, 4, 5})
		buf.Rebase(3)

		Expect(buf.Bytes()).To(Equal([]byte{3, 4, 5}))
	})

	It("should zero-fill the front when rebasing larger", func() {
		buf.Append([]byte{7, 8})
		buf.Rebase(4)

		Expect(buf.Bytes()).To(Equal([]byte{0, 0, 7, 8}))
	})

	It("should transfer ownership on move", func() {
		buf.Append([]byte{1, 2, 3})

		dst := new(Buffer)
		buf.MoveTo(dst)

		Expect(buf.Len()).To(Equal(0))
		Expect(dst.Bytes()).To(Equal([]byte{1, 2, 3}))
	})

	It("should hand out segment views", func() {
		buf.Resize(SegmentSize + 10)

		Expect(buf.Segment(0)).To(HaveLen(SegmentSize))
		Expect(buf.Segment(SegmentSize)).To(HaveLen(10))
		Expect(buf.Segment(SegmentSize + 10)).To(BeNil())
	})
})
