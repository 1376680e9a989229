// Package transport decides how a client reaches the relay server:
// directly over TCP, or through an SSH gateway.  What is sent over the
// connection is the capability layer's job.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	// Close releases long-lived resources such as an SSH session.
	// Stateless dialers return nil.
	Close() error
}
