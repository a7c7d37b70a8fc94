package config

import (
	"flag"
	"os"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend REST API
//	-k string   backend API key
//	-p string   panel id
//	-o string   cobrador (collector) id
//	-u string   user id
//	-d string   path to the local database file
//	-i int      periodic probe interval in seconds
//	-l string   path to the log file
//
// Only the flags listed here are parsed; os.Args is filtered through
// flagx.FilterArgs so flags owned by other components pass through.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-p", "-o", "-u", "-d", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteURL, "a", cfg.RemoteURL, "base URL of the backend REST API")
	fs.StringVar(&cfg.RemoteAPIKey, "k", cfg.RemoteAPIKey, "backend API key")
	fs.StringVar(&cfg.PanelID, "p", cfg.PanelID, "panel id")
	fs.StringVar(&cfg.CollectorID, "o", cfg.CollectorID, "cobrador id")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database file")
	watchInterval := fs.Int("i", int(cfg.WatchInterval.Seconds()), "periodic probe interval (in seconds)")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "path to the log file")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.WatchInterval = time.Duration(*watchInterval) * time.Second
}
