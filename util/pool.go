package util

import "sync"

// BufPool provides reusable receive buffers for connection handlers.
var BufPool = sync.Pool{ //nolint:gochecknoglobals
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a DefaultBufSize buffer from the pool.  Callers must
// return it with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers of a
// different size are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) != DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	BufPool.Put(buf)
}
