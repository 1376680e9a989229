package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config files, and environment variable loading.

const (
	// DefaultPort is the relay's TCP port.
	DefaultPort = 4000

	// DefaultBufferSize bounds a single receive; one record per receive.
	DefaultBufferSize = 1024

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultSSHKeepAlive is the interval between SSH keepalive probes.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultDialRetries is the number of dial attempts made by the
	// client; 1 disables retrying.
	DefaultDialRetries = 1

	// DefaultGracePeriod is how long shutdown waits for handlers.
	DefaultGracePeriod = 5 * time.Second

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultRedisChannel is the pub/sub channel for decoded messages.
	DefaultRedisChannel = "railrelay:messages"

	// EnvPrefix prefixes every supported environment variable.
	EnvPrefix = "RAILRELAY_"
)
