// Package config defines the runtime configuration for railrelay and
// provides helpers for parsing tunnel specifications and ports.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	rrerr "railrelay/internal/errors"
)

// Config holds every tuneable for a railrelay server or client.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string        `yaml:"host" toml:"host"`               // bind host (listen) or server host (connect)
	Port      int           `yaml:"port" toml:"port"`               // server port in connect mode
	LocalPort int           `yaml:"listen_port" toml:"listen_port"` // -p: port to listen on
	Listen    bool          `yaml:"listen" toml:"listen"`
	NoDNS     bool          `yaml:"no_dns" toml:"no_dns"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"` // dial timeout

	// ── Server ───────────────────────────────────────────────────────
	BufferSize  int           `yaml:"buffer_size" toml:"buffer_size"`   // bytes per receive
	MaxClients  int           `yaml:"max_clients" toml:"max_clients"`   // 0 = unbounded
	KeepStale   bool          `yaml:"keep_stale" toml:"keep_stale"`     // keep registry entries after disconnect
	GracePeriod time.Duration `yaml:"grace_period" toml:"grace_period"` // shutdown wait for handlers

	// ── Client ───────────────────────────────────────────────────────
	Name        string `yaml:"name" toml:"name"`
	DialRetries int    `yaml:"dial_retries" toml:"dial_retries"`

	// ── Sinks & metrics ──────────────────────────────────────────────
	MetricsAddr  string `yaml:"metrics_addr" toml:"metrics_addr"`
	MetricsPath  string `yaml:"metrics_path" toml:"metrics_path"`
	RedisURL     string `yaml:"redis_url" toml:"redis_url"`
	RedisChannel string `yaml:"redis_channel" toml:"redis_channel"`

	// ── SSH tunnel (connect mode) ────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel" toml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `yaml:"-" toml:"-"`
	TunnelUser     string `yaml:"-" toml:"-"`
	TunnelHost     string `yaml:"-" toml:"-"`
	TunnelPort     int    `yaml:"-" toml:"-"`
	SSHKeyPath     string `yaml:"ssh_key" toml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password" toml:"ssh_password"`
	UseSSHAgent    bool   `yaml:"ssh_agent" toml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey" toml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts" toml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int  `yaml:"verbose" toml:"verbose"`
	DryRun  bool `yaml:"-" toml:"-"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		LocalPort:    DefaultPort,
		Timeout:      DefaultConnTimeout,
		BufferSize:   DefaultBufferSize,
		GracePeriod:  DefaultGracePeriod,
		DialRetries:  DefaultDialRetries,
		MetricsPath:  DefaultMetricsPath,
		RedisChannel: DefaultRedisChannel,
		Verbose:      1,
	}
}

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, if any, into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Listen {
		if c.LocalPort < 1 || c.LocalPort > 65535 {
			return &rrerr.ConfigError{
				Field:   "port",
				Value:   c.LocalPort,
				Message: "listen mode requires a port in 1-65535",
				Hint:    "railrelay -l -p 4000",
			}
		}
		if c.TunnelEnabled {
			return &rrerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "SSH tunnels are only supported in connect mode",
			}
		}
		if c.MaxClients < 0 {
			return &rrerr.ConfigError{Field: "max-clients", Value: c.MaxClients, Message: "must not be negative"}
		}
	} else {
		if c.Host == "" {
			return &rrerr.ConfigError{
				Field:   "host",
				Message: "server host is required",
				Hint:    "railrelay <host> <port>",
			}
		}
		if c.Port < 1 || c.Port > 65535 {
			return &rrerr.ConfigError{
				Field:   "port",
				Value:   c.Port,
				Message: "server port is required (1-65535)",
			}
		}
		if c.DialRetries < 1 {
			return &rrerr.ConfigError{
				Field:   "retries",
				Value:   c.DialRetries,
				Message: "must be at least 1",
				Hint:    "1 means a single attempt with no retry",
			}
		}
	}

	if c.BufferSize < 1 {
		return &rrerr.ConfigError{Field: "buffer-size", Value: c.BufferSize, Message: "must be positive"}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rrerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	return nil
}
