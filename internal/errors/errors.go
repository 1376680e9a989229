// Package errors provides the error taxonomy shared by the relay server
// and client.
//
// Per-connection failures (a malformed record, a payload from a peer
// that never identified itself, a bad rail key, the peer hanging up)
// are sentinels so handlers can branch with errors.Is and keep the
// listener running.  Structured types carry the peer or config field
// involved.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrMalformedRecord means a received chunk is not a record.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnknownIdentity means a peer sent a payload before identifying.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrInvalidKey means a rail key is outside [1, len(text)].
	ErrInvalidKey = errors.New("invalid key")
	// ErrPeerClosed means the remote end closed the connection.
	ErrPeerClosed = errors.New("peer closed connection")

	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailed   = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // "dial", "listen", "accept", "read", "write"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RecordError ties a record-level failure to the peer that sent it.
type RecordError struct {
	Peer string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record from %s: %v", e.Peer, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// SSHError represents an SSH gateway failure.
type SSHError struct {
	Op   string // "auth", "hostkey", "handshake", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string
	Value   interface{} // nil if missing
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapRecord attributes err to peer.
func WrapRecord(peer string, err error) *RecordError {
	return &RecordError{Peer: peer, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification ───────────────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsConnectionLevel reports whether err only concerns a single record
// and the connection can keep going.
func IsConnectionLevel(err error) bool {
	return errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrUnknownIdentity) ||
		errors.Is(err, ErrInvalidKey)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Refused dials are worth another try while a server starts.
		if opErr.Op == "dial" {
			return true
		}
		return opErr.Temporary() //nolint:staticcheck
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports ───────────────────────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
