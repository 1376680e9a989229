package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrelay/config"
	"railrelay/internal/capability"
	"railrelay/internal/transport"
	"railrelay/util"
)

func TestBuild_Connect(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 4000
	cfg.Name = "alice"
	cfg.DialRetries = 3

	mode, err := Build(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	cm, ok := mode.(*ConnectMode)
	require.True(t, ok, "got %T", mode)
	assert.Equal(t, "127.0.0.1:4000", cm.Address)
	assert.Equal(t, 3, cm.Retry.MaxAttempts)
	assert.IsType(t, &transport.TCPDialer{}, cm.Dialer)

	compose, ok := cm.Capability.(*capability.Compose)
	require.True(t, ok)
	assert.Equal(t, "alice", compose.Name)
}

func TestBuild_ConnectNoDNS(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "relay.example.com"
	cfg.Port = 4000
	cfg.NoDNS = true

	_, err := Build(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DNS disabled")
}

func TestBuild_ConnectThroughTunnel(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "10.0.0.5"
	cfg.Port = 4000
	cfg.TunnelSpec = "relay@gateway.example.com:2222"
	require.NoError(t, cfg.ApplyTunnelSpec())

	mode, err := Build(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &transport.SSHDialer{}, mode.(*ConnectMode).Dialer)
}

func TestBuild_Listen(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = true
	cfg.Host = "127.0.0.1"
	cfg.LocalPort = 4000
	cfg.MaxClients = 8
	cfg.BufferSize = 2048
	cfg.KeepStale = true
	cfg.GracePeriod = 2 * time.Second

	mode, err := Build(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	lm, ok := mode.(*ListenMode)
	require.True(t, ok, "got %T", mode)
	assert.Equal(t, "127.0.0.1:4000", lm.Address)
	assert.Equal(t, 8, lm.MaxClients)
	assert.Equal(t, 2*time.Second, lm.GracePeriod)
	assert.Len(t, lm.Closers, 1)

	d, ok := lm.Capability.(*capability.Decipher)
	require.True(t, ok)
	assert.Equal(t, 2048, d.BufferSize)
	assert.False(t, d.EvictOnClose)
	assert.NotNil(t, d.Registry)
	assert.Same(t, lm.Metrics, d.Metrics)
}

func TestBuild_ListenDefaultHost(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = true

	mode, err := Build(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, util.FormatAddr(util.HostAddress(), 4000), mode.(*ListenMode).Address)
}

func TestBuild_ListenRedisUnreachable(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Listen = true
	cfg.Timeout = time.Second
	cfg.RedisURL = "redis://" + util.FormatAddr("127.0.0.1", port) + "/0"

	_, err = Build(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis sink")
}
