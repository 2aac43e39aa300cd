package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.RemoteEndpoint)
	assert.Equal(t, "file:passvault.db", c.DatabaseDSN)
	assert.Equal(t, 30*time.Second, c.EventPollInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.RemoteEndpoint)
	assert.Equal(t, 30*time.Second, cfg.EventPollInterval)
}

func TestParseJson_OverlaysOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	body, err := json.Marshal(map[string]any{
		"remote_endpoint":     "https://api.example.com",
		"event_poll_interval": "5s",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	origArgs := os.Args
	os.Args = []string{"passvault", "-c", path}
	defer func() { os.Args = origArgs }()

	var cfg Config
	cfg.LoadDefaults()
	parseJson(&cfg)

	assert.Equal(t, "https://api.example.com", cfg.RemoteEndpoint)
	assert.Equal(t, 5*time.Second, cfg.EventPollInterval)
	assert.Equal(t, "file:passvault.db", cfg.DatabaseDSN)
}
