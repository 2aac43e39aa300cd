// Package config handles configuration for the sync daemon, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the passvault sync daemon.
//
// Fields:
//   - RemoteEndpoint: base URL of the backend HTTP API.
//   - DatabaseDSN: sqlite DSN for the local cache.
//   - EventPollInterval: how often the pull loop asks for new events.
type Config struct {
	RemoteEndpoint    string
	DatabaseDSN       string
	EventPollInterval time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.RemoteEndpoint = "http://127.0.0.1:8080"
	c.DatabaseDSN = "file:passvault.db"
	c.EventPollInterval = 30 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
