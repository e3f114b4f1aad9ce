package utils

import (
	"bytes"
	"sync"
)

// handshake requests are small, so buffers that grew past this are dropped
const maxPooledBufCap = 4096

var bufPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// GetBuf gets an empty *bytes.Buffer from the pool.
func GetBuf() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func PutBuf(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufCap {
		return
	}
	buf.Reset()
	bufPool.Put(buf)
}
