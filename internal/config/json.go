package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/flagx"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. Pointer fields distinguish "absent" from
// "zero": only keys present in the file override the running Config.
type JsonConfig struct {
	RemoteURL      string          `json:"remote_url"`
	RemoteAPIKey   string          `json:"remote_api_key"`
	RequestTimeout *timex.Duration `json:"request_timeout"`

	PanelID     string `json:"panel_id"`
	CollectorID string `json:"cobrador_id"`
	UserID      string `json:"user_id"`

	DatabasePath string `json:"database_path"`
	FallbackPath string `json:"fallback_path"`

	KeyPath           string `json:"key_path"`
	Passphrase        string `json:"passphrase"`
	EncryptionEnabled *bool  `json:"encryption_enabled"`

	ProbeURL       string          `json:"probe_url"`
	ProbeTimeout   *timex.Duration `json:"probe_timeout"`
	ProbeFreshness *timex.Duration `json:"probe_freshness"`
	Stabilization  *timex.Duration `json:"stabilization"`
	ReconnectDelay *timex.Duration `json:"reconnect_delay"`
	ProbeAttempts  int             `json:"probe_attempts"`
	WatchInterval  *timex.Duration `json:"watch_interval"`

	LogFile  string `json:"log_file"`
	LogLevel string `json:"log_level"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c/-config flags via flagx.JsonConfigFlags; when no path
// is given the function is a no-op. Read or unmarshal errors panic, the
// caller cannot run with a half-applied config.
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

	overlayString(&cfg.RemoteURL, jc.RemoteURL)
	overlayString(&cfg.RemoteAPIKey, jc.RemoteAPIKey)
	overlayDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	overlayString(&cfg.PanelID, jc.PanelID)
	overlayString(&cfg.CollectorID, jc.CollectorID)
	overlayString(&cfg.UserID, jc.UserID)
	overlayString(&cfg.DatabasePath, jc.DatabasePath)
	overlayString(&cfg.FallbackPath, jc.FallbackPath)
	overlayString(&cfg.KeyPath, jc.KeyPath)
	overlayString(&cfg.Passphrase, jc.Passphrase)
	if jc.EncryptionEnabled != nil {
		cfg.EncryptionEnabled = *jc.EncryptionEnabled
	}
	overlayString(&cfg.ProbeURL, jc.ProbeURL)
	overlayDuration(&cfg.ProbeTimeout, jc.ProbeTimeout)
	overlayDuration(&cfg.ProbeFreshness, jc.ProbeFreshness)
	overlayDuration(&cfg.Stabilization, jc.Stabilization)
	overlayDuration(&cfg.ReconnectDelay, jc.ReconnectDelay)
	if jc.ProbeAttempts > 0 {
		cfg.ProbeAttempts = jc.ProbeAttempts
	}
	overlayDuration(&cfg.WatchInterval, jc.WatchInterval)
	overlayString(&cfg.LogFile, jc.LogFile)
	overlayString(&cfg.LogLevel, jc.LogLevel)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
