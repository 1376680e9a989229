// Package session represents a single connection lifecycle, binding a
// network connection with I/O endpoints and shared context.
//
// Capabilities operate on sessions rather than raw connections, so a
// handler does not care whether its prompts come from os.Stdin or a
// test buffer.
package session

import (
	"io"
	"net"

	"github.com/google/uuid"

	"railrelay/util"
)

// State tracks where a server-side session is in its lifecycle.
type State int

const (
	// AwaitingIdentity is the state before the peer has named itself.
	AwaitingIdentity State = iota
	// Active means an identification record has been received.
	Active
)

func (s State) String() string {
	switch s {
	case AwaitingIdentity:
		return "awaiting-identity"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Session encapsulates the runtime context for a single connection.
type Session struct {
	ID       string
	Identity string // peer address, the registry key
	State    State

	Conn        net.Conn
	Stdin       io.Reader
	Stdout      io.Writer
	Interactive bool // stdin is a terminal; show prompts
	Logger      *util.Logger
}

// New creates a Session bound to the given connection and I/O pair.
// The logger is tagged with the new session ID.
func New(conn net.Conn, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:     id,
		Conn:   conn,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
	if conn != nil && conn.RemoteAddr() != nil {
		s.Identity = conn.RemoteAddr().String()
	}
	if logger != nil {
		s.Logger = logger.With("session", id[:8])
	}
	return s
}
