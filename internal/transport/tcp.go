package transport

import (
	"context"
	"net"
	"time"

	rrerr "railrelay/internal/errors"
)

// TCPDialer connects straight to the server.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address.  Failures are returned as
// *errors.NetworkError so the caller can decide whether to retry.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, rrerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close is a no-op.
func (d *TCPDialer) Close() error { return nil }
