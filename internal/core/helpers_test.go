package core

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"railrelay/internal/capability"
	"railrelay/internal/metrics"
	"railrelay/internal/protocol"
	"railrelay/internal/registry"
	"railrelay/internal/sink"
	"railrelay/util"
)

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

type memorySink struct {
	mu  sync.Mutex
	got []sink.Message
}

func (m *memorySink) Deliver(_ context.Context, msg sink.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, msg)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) texts(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.got {
		if msg.Name == name {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *memorySink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

// relay is a running ListenMode on a loopback port.
type relay struct {
	mode   *ListenMode
	sink   *memorySink
	reg    *registry.Registry
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startRelay(t *testing.T, tweak func(*ListenMode)) *relay {
	t.Helper()
	return startRelayOn(t, nil, tweak)
}

// startRelayOn serves on ln instead of binding a fresh loopback port.
func startRelayOn(t *testing.T, ln net.Listener, tweak func(*ListenMode)) *relay {
	t.Helper()

	reg := registry.New()
	coll := metrics.New(reg.Len)
	ms := &memorySink{}
	mode := &ListenMode{
		Address:     "127.0.0.1:0",
		GracePeriod: time.Second,
		Capability: &capability.Decipher{
			Registry:     reg,
			Sink:         ms,
			Metrics:      coll,
			EvictOnClose: true,
		},
		Metrics: coll,
		Logger:  quietLogger(),
	}
	if tweak != nil {
		tweak(mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &relay{mode: mode, sink: ms, reg: reg, cancel: cancel, done: make(chan error, 1)}
	go func() {
		if ln == nil {
			r.done <- mode.Run(ctx)
			return
		}
		r.done <- mode.Serve(ctx, ln)
	}()

	select {
	case <-mode.Ready():
	case err := <-r.done:
		t.Fatalf("relay exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not start")
	}
	r.addr = mode.Addr().String()

	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(3 * time.Second):
			t.Error("relay did not stop")
		}
	})
	return r
}

func (r *relay) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		r.done <- err // let Cleanup observe it too
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not stop")
		return nil
	}
}

// flakyListener fails its first Accept calls the way accept4 does when
// the process is out of file descriptors.
type flakyListener struct {
	net.Listener
	failures atomic.Int32
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures.Add(-1) >= 0 {
		return nil, &net.OpError{Op: "accept", Net: "tcp", Addr: l.Addr(), Err: os.NewSyscallError("accept4", syscall.EMFILE)}
	}
	return l.Listener.Accept()
}

// syncBuffer is a bytes.Buffer safe for concurrent loggers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// dialClient connects and identifies as name.
func dialClient(t *testing.T, addr, name string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	send(t, conn, protocol.Identify(name))
	return conn
}

// send writes one record and pauses so the server sees one record per
// receive, as real clients typing at a prompt do.
func send(t *testing.T, conn net.Conn, r protocol.Record) {
	t.Helper()
	require.NoError(t, protocol.Write(conn, r))
	time.Sleep(10 * time.Millisecond)
}
