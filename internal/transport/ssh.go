package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"railrelay/tunnel"
	"railrelay/util"
)

// SSHDialer reaches the server through an SSH gateway.  The gateway
// connection is made on the first Dial and reused afterwards.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	name   string
	logger *util.Logger

	mu sync.Mutex
}

// NewSSHDialer builds a dialer over an SSH tunnel described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	tun := tunnel.NewSSHTunnel(cfg, logger)
	return &SSHDialer{
		tunnel: tun,
		name:   tun.String(),
		logger: logger,
	}
}

func (d *SSHDialer) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.Alive() {
		return nil
	}
	d.logger.Verbose("opening SSH tunnel via %s", d.name)
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.logger.Verbose("SSH tunnel up")
	return nil
}

// Dial opens address from the gateway, reconnecting the tunnel first
// if it has dropped.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears the tunnel down.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
