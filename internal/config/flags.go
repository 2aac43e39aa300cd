package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   base URL of the backend HTTP API
//	-d string   sqlite DSN for the local cache
//	-i int      event poll interval in seconds
//
// os.Args is filtered to just these flags so other components can parse
// their own without interference.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteEndpoint, "a", cfg.RemoteEndpoint, "base URL of the backend HTTP API")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "sqlite DSN for the local cache")
	pollInterval := fs.Int("i", int(cfg.EventPollInterval.Seconds()), "event poll interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.EventPollInterval = time.Duration(*pollInterval) * time.Second
}
