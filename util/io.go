package util

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// DefaultBufSize is the receive buffer for one record (1 KiB).
const DefaultBufSize = 1024

// ReadChunk performs a single receive into buf.  It returns the bytes
// read and closed=true when the peer has gone away: a zero-byte read
// ending in EOF, a reset, or a read on an already closed socket.
// Other errors are returned as is.
func ReadChunk(conn net.Conn, buf []byte) (n int, closed bool, err error) {
	n, err = conn.Read(buf)
	if err == nil {
		return n, false, nil
	}
	if IsClosed(err) {
		return n, true, nil
	}
	return n, false, err
}

// CloseOnDone closes c once ctx is cancelled, unblocking any pending
// read.  The returned func stops the watcher.
func CloseOnDone(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// IsClosed reports whether err means the connection is gone.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
