package netLayer

// ReadIncrement is the step ReadBuffer grows by.
const ReadIncrement = 4096

// ReadBuffer is a growable byte buffer for a stream read loop.
//
// Valid unconsumed data is buf[head:offset]. Reads go into Spare(), frames are
// taken from Bytes() and dropped with Consume; Compact moves the partial tail
// back to the front. The buffer never shrinks.
type ReadBuffer struct {
	buf    []byte
	head   int
	offset int
}

func NewReadBuffer() *ReadBuffer {
	return &ReadBuffer{buf: make([]byte, ReadIncrement)}
}

// Reserve makes sure at least ReadIncrement bytes are free after offset.
func (rb *ReadBuffer) Reserve() {
	if len(rb.buf)-rb.offset >= ReadIncrement {
		return
	}
	nb := make([]byte, len(rb.buf)+ReadIncrement)
	copy(nb, rb.buf[:rb.offset])
	rb.buf = nb
}

// Spare is the free region after offset. Read into it then call Commit.
func (rb *ReadBuffer) Spare() []byte {
	return rb.buf[rb.offset:]
}

func (rb *ReadBuffer) Commit(n int) {
	if n < 0 || rb.offset+n > len(rb.buf) {
		panic("ReadBuffer: commit out of range")
	}
	rb.offset += n
}

// Append copies p to the end, growing as needed.
func (rb *ReadBuffer) Append(p []byte) {
	for len(p) > 0 {
		rb.Reserve()
		n := copy(rb.Spare(), p)
		rb.Commit(n)
		p = p[n:]
	}
}

// Bytes returns the unconsumed data. It is only valid until the next
// Reserve, Append or Compact.
func (rb *ReadBuffer) Bytes() []byte {
	return rb.buf[rb.head:rb.offset]
}

func (rb *ReadBuffer) Len() int {
	return rb.offset - rb.head
}

func (rb *ReadBuffer) Cap() int {
	return len(rb.buf)
}

func (rb *ReadBuffer) Consume(n int) {
	if n < 0 || rb.head+n > rb.offset {
		panic("ReadBuffer: consume out of range")
	}
	rb.head += n
}

// Compact moves the unconsumed bytes to the start of the buffer.
func (rb *ReadBuffer) Compact() {
	if rb.head == 0 {
		return
	}
	n := copy(rb.buf, rb.buf[rb.head:rb.offset])
	rb.head = 0
	rb.offset = n
}
