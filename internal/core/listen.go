package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"railrelay/internal/capability"
	rrerr "railrelay/internal/errors"
	"railrelay/internal/metrics"
	"railrelay/internal/session"
	"railrelay/util"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ListenMode is the relay server.  It accepts clients on one TCP
// socket and runs the capability on each connection in its own
// goroutine.  Handlers are supervised: on shutdown every handler is
// cancelled and waited for up to GracePeriod.
type ListenMode struct {
	Address     string
	MaxClients  int // 0 = unbounded
	GracePeriod time.Duration
	Capability  capability.Capability
	Metrics     *metrics.Collector
	MetricsAddr string
	MetricsPath string
	Logger      *util.Logger
	// Closers are released when Run returns (sinks, for example).
	Closers []io.Closer

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
	addr   net.Addr
	ready  chan struct{}
	once   sync.Once
}

func (m *ListenMode) init() {
	m.once.Do(func() {
		m.active = make(map[string]context.CancelFunc)
		m.ready = make(chan struct{})
	})
}

// Ready is closed once the socket is bound.
func (m *ListenMode) Ready() <-chan struct{} {
	m.init()
	return m.ready
}

// Addr returns the bound address, or nil before Ready.
func (m *ListenMode) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Active returns the number of connections being handled.
func (m *ListenMode) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Run binds the socket and accepts until ctx is cancelled.
// Per-connection failures never stop the listener.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		m.release()
		return rrerr.Wrap("listen", m.Address, err)
	}
	return m.Serve(ctx, ln)
}

// Serve accepts clients on ln until ctx is cancelled.  Accept failures
// such as running out of file descriptors are logged and retried with a
// delay that doubles from 5ms up to 1s; only cancellation, or ln being
// closed from outside, ends the loop.
func (m *ListenMode) Serve(ctx context.Context, ln net.Listener) error {
	m.init()
	defer m.release()

	if m.MaxClients > 0 {
		ln = netutil.LimitListener(ln, m.MaxClients)
	}
	defer ln.Close()

	m.mu.Lock()
	m.addr = ln.Addr()
	m.mu.Unlock()
	close(m.ready)

	m.Logger.Info("[LISTENING] server is listening on %s", ln.Addr())

	if m.MetricsAddr != "" {
		go func() {
			m.Logger.Verbose("metrics on http://%s%s", m.MetricsAddr, m.MetricsPath)
			if err := m.Metrics.Serve(ctx, m.MetricsAddr, m.MetricsPath); err != nil {
				m.Logger.Error("metrics: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return m.shutdown()
			}
			if errors.Is(err, net.ErrClosed) {
				m.shutdown() //nolint:errcheck
				return rrerr.Wrap("accept", ln.Addr().String(), err)
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			m.Logger.Warn("accept: %v; retrying in %v", err, delay)
			m.Metrics.RecordError("accept", err.Error())

			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return m.shutdown()
			case <-t.C:
			}
			continue
		}
		delay = 0
		m.serve(ctx, conn)
	}
}

// serve starts a supervised handler for conn.
func (m *ListenMode) serve(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, nil, nil, m.Logger)
	connCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.active[sess.ID] = cancel
	n := len(m.active)
	m.mu.Unlock()
	m.wg.Add(1)
	m.Metrics.ConnectionOpened()

	m.Logger.Info("[NEW CONNECTION] %s connected.", sess.Identity)
	m.Logger.Info("[ACTIVE CONNECTIONS] %d", n)

	go func() {
		defer m.wg.Done()
		defer m.Metrics.ConnectionClosed()
		defer func() {
			m.mu.Lock()
			delete(m.active, sess.ID)
			m.mu.Unlock()
			cancel()
		}()

		err := m.Capability.Handle(connCtx, sess)
		switch {
		case err == nil, errors.Is(err, rrerr.ErrPeerClosed):
			sess.Logger.Debug("%s: handler done", sess.Identity)
		default:
			sess.Logger.Warn("%s: %v", sess.Identity, err)
		}
	}()
}

// shutdown cancels all handlers and waits up to GracePeriod.
func (m *ListenMode) shutdown() error {
	m.mu.Lock()
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
		m.Logger.Verbose("all connections closed")
	case <-time.After(grace):
		m.Logger.Warn("%d connection(s) still open after %v", m.Active(), grace)
	}
	if m.Metrics != nil {
		m.Logger.Verbose("final metrics: %s", m.Metrics.JSON())
	}
	return nil
}

func (m *ListenMode) release() {
	for _, c := range m.Closers {
		if err := c.Close(); err != nil {
			m.Logger.Warn("close: %v", err)
		}
	}
}
