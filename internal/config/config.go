// Package config assembles runtime settings for the cobrador client.
// Sources are layered: built-in defaults, then an optional JSON file, then
// command-line flags, with later sources taking precedence.
package config

import "time"

// Config holds runtime settings for the cobrador client.
type Config struct {
	// RemoteURL is the base URL of the backend REST API.
	RemoteURL string
	// RemoteAPIKey authenticates every backend call.
	RemoteAPIKey string
	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration

	// Collector identity stamped into every capture.
	PanelID     string
	CollectorID string
	UserID      string

	// DatabasePath is the local SQLite file. FallbackPath is the JSON
	// file used when the database cannot be opened.
	DatabasePath string
	FallbackPath string

	// KeyPath stores the at-rest encryption key; Passphrase, when set,
	// derives the key instead of generating a random one.
	KeyPath           string
	Passphrase        string
	EncryptionEnabled bool

	// ProbeURL is the reachability endpoint; empty means RemoteURL.
	ProbeURL       string
	ProbeTimeout   time.Duration
	ProbeFreshness time.Duration
	Stabilization  time.Duration
	ReconnectDelay time.Duration
	ProbeAttempts  int
	WatchInterval  time.Duration

	LogFile  string
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 10 * time.Second
	c.DatabasePath = "cobrador.db"
	c.FallbackPath = "cobrador.fallback.json"
	c.KeyPath = "cobrador.key"
	c.EncryptionEnabled = true
	c.ProbeTimeout = 3 * time.Second
	c.ProbeFreshness = 5 * time.Second
	c.Stabilization = time.Second
	c.ReconnectDelay = 2 * time.Second
	c.ProbeAttempts = 3
	c.WatchInterval = 30 * time.Second
	c.LogFile = "cobrador.log"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
