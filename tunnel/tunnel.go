// Package tunnel carries client connections to a relay server through
// an SSH gateway, using golang.org/x/crypto/ssh.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an encrypted channel through which TCP connections can be
// opened to hosts reachable from the gateway.
type Tunnel interface {
	Connect(ctx context.Context) error
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	Close() error
	Alive() bool
}
