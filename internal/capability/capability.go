// Package capability defines what happens over an established
// connection.  Decipher is the server side of a relay session and
// Compose the client side; both operate on a Session rather than a raw
// net.Conn, which keeps them testable and decoupled from transport
// details.
package capability

import (
	"context"

	"railrelay/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.
	// It blocks until the connection is done or the context is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
