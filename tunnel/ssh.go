package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	rrerr "railrelay/internal/errors"
	"railrelay/util"
)

// SSHConfig describes how to reach and authenticate to a gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
	// KeepAlive sends keepalive@openssh.com at this interval; 0 turns
	// it off.
	KeepAlive time.Duration
}

// Addr returns host:port of the gateway.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSHTunnel implements [Tunnel] over a single ssh.Client.
type SSHTunnel struct {
	cfg    *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	stop   chan struct{}
}

// NewSSHTunnel prepares a tunnel; call Connect before Dial.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{cfg: cfg, logger: logger}
}

// Connect dials the gateway and completes the SSH handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	auth, err := authMethods(t.cfg)
	if err != nil {
		return rrerr.WrapSSH("auth", t.cfg.Host, t.cfg.Port, err)
	}
	hostKey, err := hostKeyCallback(t.cfg)
	if err != nil {
		return rrerr.WrapSSH("hostkey", t.cfg.Host, t.cfg.Port, err)
	}

	addr := t.cfg.Addr()
	t.logger.Debug("ssh: dialing %s as %s", addr, t.cfg.User)

	d := net.Dialer{Timeout: t.cfg.ConnTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return rrerr.Wrap("dial", addr, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.cfg.ConnTimeout,
	})
	if err != nil {
		raw.Close()
		return rrerr.WrapSSH("handshake", t.cfg.Host, t.cfg.Port, err)
	}
	client := ssh.NewClient(conn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	go t.watch(client)
	if t.cfg.KeepAlive > 0 {
		go t.keepalive(client, stop)
	}
	return nil
}

// Dial opens a direct-tcpip channel to address from the gateway.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()
	if !alive || client == nil {
		return nil, rrerr.ErrNotConnected
	}

	t.logger.Debug("ssh: forwarding to %s", address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, rrerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close shuts the SSH connection down.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Alive reports whether the SSH connection is up.
func (t *SSHTunnel) Alive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// watch marks the tunnel dead once the SSH connection ends.
func (t *SSHTunnel) watch(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("ssh: connection closed: %v", err)
	}
}

// keepalive pings the gateway and closes the client when it stops
// answering, which also wakes watch.
func (t *SSHTunnel) keepalive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Warn("ssh: keepalive to %s failed: %v", t.cfg.Addr(), err)
				client.Close()
				return
			}
			t.logger.Debug("ssh: keepalive ok")
		}
	}
}

var _ Tunnel = (*SSHTunnel)(nil)

// String describes the gateway for log lines.
func (t *SSHTunnel) String() string {
	return fmt.Sprintf("%s@%s", t.cfg.User, t.cfg.Addr())
}
