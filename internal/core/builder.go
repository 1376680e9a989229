package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"railrelay/config"
	"railrelay/internal/capability"
	"railrelay/internal/metrics"
	"railrelay/internal/registry"
	"railrelay/internal/retry"
	"railrelay/internal/sink"
	"railrelay/internal/transport"
	"railrelay/tunnel"
	"railrelay/util"
)

// redisBreaker skips Redis for a while after repeated failures.
var redisBreaker = retry.BreakerConfig{MaxFailures: 3, Cooldown: 30 * time.Second} //nolint:gochecknoglobals

// Build constructs the Mode selected by cfg.  ctx bounds any startup
// checks, such as pinging Redis.
func Build(ctx context.Context, cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Listen {
		return buildListen(ctx, cfg, logger)
	}
	return buildConnect(cfg, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(ctx context.Context, cfg *config.Config, logger *util.Logger) (Mode, error) {
	host := cfg.Host
	if host == "" {
		host = util.HostAddress()
	}

	reg := registry.New()
	coll := metrics.New(reg.Len)

	fanout, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &ListenMode{
		Address:     util.FormatAddr(host, cfg.LocalPort),
		MaxClients:  cfg.MaxClients,
		GracePeriod: cfg.GracePeriod,
		Capability: &capability.Decipher{
			Registry:     reg,
			Sink:         fanout,
			Metrics:      coll,
			BufferSize:   cfg.BufferSize,
			EvictOnClose: !cfg.KeepStale,
		},
		Metrics:     coll,
		MetricsAddr: cfg.MetricsAddr,
		MetricsPath: cfg.MetricsPath,
		Logger:      logger,
		Closers:     []io.Closer{fanout},
	}, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger) (Mode, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, err
	}

	attempts := cfg.DialRetries
	if attempts < 1 {
		attempts = 1
	}

	return &ConnectMode{
		Dialer:      buildDialer(cfg, logger),
		Capability:  &capability.Compose{Name: cfg.Name, MaxRecord: cfg.BufferSize},
		Address:     address,
		Retry:       retry.ForDial(attempts),
		Logger:      logger,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildSinks always logs messages and, with a Redis URL, publishes
// them too.
func buildSinks(ctx context.Context, cfg *config.Config, logger *util.Logger) (*sink.Multi, error) {
	sinks := []sink.Sink{&sink.LogSink{Logger: logger}}

	if cfg.RedisURL != "" {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = config.DefaultConnTimeout
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		rs, err := sink.NewRedisSink(pingCtx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		logger.Verbose("publishing messages to redis channel %s", cfg.RedisChannel)

		b := redisBreaker
		b.OnStateChange = func(from, to retry.State) {
			logger.Warn("redis sink: circuit %s -> %s", from, to)
		}
		sinks = append(sinks, sink.NewGuarded(rs, b))
	}
	return sink.NewMulti(logger, sinks...), nil
}

// buildDialer picks a direct or SSH-tunnelled dialer.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
			KeepAlive:     config.DefaultSSHKeepAlive,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
