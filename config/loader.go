package config

// loader.go - configuration loading from files and the environment.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables, including a .env file  (this file)
//   3. Config file, YAML or TOML  (this file)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML or TOML file at path onto cfg.  The format
// is chosen by extension; anything other than .toml is read as YAML.
// Keys absent from the file leave cfg untouched.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process
// environment without overriding variables that are already set.  A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RAILRELAY_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := envInt("SERVER_PORT"); v > 0 {
		cfg.Port = v
	}
	if envBool("LISTEN") {
		cfg.Listen = true
	}
	if envBool("NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Server
	if v := envInt("BUFFER_SIZE"); v > 0 {
		cfg.BufferSize = v
	}
	if v := envInt("MAX_CLIENTS"); v > 0 {
		cfg.MaxClients = v
	}
	if envBool("KEEP_STALE") {
		cfg.KeepStale = true
	}
	if v := envInt("GRACE_PERIOD"); v > 0 {
		cfg.GracePeriod = secondsDuration(v)
	}

	// Client
	if v := env("NAME"); v != "" {
		cfg.Name = v
	}
	if v := envInt("DIAL_RETRIES"); v > 0 {
		cfg.DialRetries = v
	}

	// Sinks & metrics
	if v := env("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := env("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := env("REDIS_CHANNEL"); v != "" {
		cfg.RedisChannel = v
	}

	// SSH tunnel
	if v := env("TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) int {
	v := env(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
