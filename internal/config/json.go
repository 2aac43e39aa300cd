package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/passvault/internal/flagx"
	"github.com/dmitrijs2005/passvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so intervals can be given either as strings like
// "30s" or as integer nanoseconds. After parsing, values are copied into
// the runtime Config.
type JsonConfig struct {
	RemoteEndpoint    string         `json:"remote_endpoint"`
	DatabaseDSN       string         `json:"database_dsn"`
	EventPollInterval timex.Duration `json:"event_poll_interval"`
}

// parseJson overlays Config with values loaded from a JSON file. The
// file path comes from the -c or -config flags; when neither is set no
// JSON is loaded. Read or unmarshal errors panic, matching the startup
// semantics of the other config stages.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteEndpoint != "" {
		cfg.RemoteEndpoint = jc.RemoteEndpoint
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.EventPollInterval.Duration != 0 {
		cfg.EventPollInterval = time.Duration(jc.EventPollInterval.Duration)
	}
}
