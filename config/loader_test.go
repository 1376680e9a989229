package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Basics(t *testing.T) {
	t.Setenv("RAILRELAY_HOST", "relay.example.com")
	t.Setenv("RAILRELAY_PORT", "4100")
	t.Setenv("RAILRELAY_SERVER_PORT", "4200")
	t.Setenv("RAILRELAY_NAME", "alice")
	t.Setenv("RAILRELAY_TIMEOUT", "7")
	t.Setenv("RAILRELAY_REDIS_URL", "redis://localhost:6379/0")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "relay.example.com", cfg.Host)
	assert.Equal(t, 4100, cfg.LocalPort)
	assert.Equal(t, 4200, cfg.Port)
	assert.Equal(t, "alice", cfg.Name)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "Yes"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("RAILRELAY_LISTEN", v)
			t.Setenv("RAILRELAY_KEEP_STALE", v)
			cfg := Default()
			LoadFromEnv(cfg)
			assert.True(t, cfg.Listen)
			assert.True(t, cfg.KeepStale)
		})
	}
}

func TestLoadFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("RAILRELAY_PORT", "not-a-number")
	t.Setenv("RAILRELAY_LISTEN", "nope")
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, DefaultPort, cfg.LocalPort)
	assert.False(t, cfg.Listen)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: true
listen_port: 4500
buffer_size: 2048
grace_period: 2s
metrics_addr: ":9100"
redis_channel: "relay:test"
`), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))
	assert.True(t, cfg.Listen)
	assert.Equal(t, 4500, cfg.LocalPort)
	assert.Equal(t, 2048, cfg.BufferSize)
	assert.Equal(t, 2*time.Second, cfg.GracePeriod)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "relay:test", cfg.RedisChannel)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConnTimeout, cfg.Timeout)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "railrelay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "10.0.0.5"
port = 4000
name = "bob"
dial_retries = 3
timeout = "10s"
`), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "bob", cfg.Name)
	assert.Equal(t, 3, cfg.DialRetries)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	assert.Error(t, LoadFile(cfg, filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("listen: [unterminated"), 0o600))
	assert.Error(t, LoadFile(cfg, bad))
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(""))
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RAILRELAY_NAME=from-dotenv\n"), 0o600))

	// godotenv never overrides a variable that is already set.
	t.Setenv("RAILRELAY_NAME", "")
	os.Unsetenv("RAILRELAY_NAME")

	require.NoError(t, LoadDotEnv(path))
	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, "from-dotenv", cfg.Name)
}
