package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 11434, cfg.Port)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.BaseURL())
	assert.Equal(t, 90*time.Second, cfg.IdleThreshold())
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.ReadyPollInterval())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesDefaultsToUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 18080\nidle-restart-seconds: 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 18080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.IdleThreshold())
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout())
	assert.Equal(t, "http://127.0.0.1:18080", cfg.BaseURL())
}

func TestLoadFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `host: 127.0.0.1
port: 11434
server-bin: /opt/ollama/bin/ollama
log-dir: /var/log/ollamactl
idle-restart-seconds: 120
ready-timeout-seconds: 10
ready-poll-millis: 250
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/ollama/bin/ollama", cfg.ServerBin)
	assert.Equal(t, "/var/log/ollamactl", cfg.LogDir)
	assert.Equal(t, 120*time.Second, cfg.IdleThreshold())
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.ReadyPollInterval())
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
