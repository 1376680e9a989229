package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"railrelay/internal/capability"
	"railrelay/internal/retry"
	"railrelay/internal/session"
	"railrelay/internal/transport"
	"railrelay/util"
)

// ConnectMode dials the relay server and runs a capability on the
// connection: the interactive client.
type ConnectMode struct {
	Dialer     transport.Dialer
	Capability capability.Capability
	Address    string
	Retry      *retry.Backoff // nil = single attempt
	Logger     *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin       io.Reader
	Stdout      io.Writer
	Interactive bool
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials (with retries), creates a session, and hands it to the
// capability.  The transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	policy := m.Retry
	if policy == nil {
		policy = &retry.Backoff{MaxAttempts: 1}
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			m.Logger.Warn("connect attempt %d failed: %v (retrying in %v)", attempt, err, wait.Truncate(time.Millisecond))
		}
	}

	m.Logger.Verbose("connecting to %s", m.Address)

	var sess *session.Session
	err := policy.Do(ctx, func(int) error {
		conn, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			return err
		}
		sess = session.New(conn, m.stdin(), m.stdout(), m.Logger)
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer sess.Conn.Close()

	sess.Interactive = m.Interactive
	m.Logger.Verbose("connected to %s", sess.Identity)
	return m.Capability.Handle(ctx, sess)
}
