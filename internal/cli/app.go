// Package cli wires the cobrador client together and drives it from a
// read-eval-print loop.
package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/capture"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/config"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/connectivity"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/cryptox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/outbox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/remote"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/syncer"
)

// App holds the wired components of the running client.
type App struct {
	config  *config.Config
	capture *capture.Service
	engine  *syncer.Engine
	monitor *connectivity.Monitor
	log     logging.Logger

	// degraded is set when the SQLite database could not be opened and
	// the file-backed fallback is in use.
	degraded bool

	keyFingerprint string
}

// NewApp builds the full component graph from cfg. Storage and encryption
// failures degrade rather than abort: the collector in the field must be
// able to keep capturing no matter what.
func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewDeviceLogger(cfg.LogFile, parseLevel(cfg.LogLevel))

	app := &App{config: cfg, log: log}

	var (
		cache store.Store
		queue outbox.Repository
	)
	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "database unavailable, using file fallback", "error", err)
		app.degraded = true
		fileStore, err := store.OpenFile(cfg.FallbackPath)
		if err != nil {
			return nil, err
		}
		fileQueue, err := outbox.OpenFileRepository(cfg.FallbackPath + ".outbox")
		if err != nil {
			return nil, err
		}
		cache, queue = fileStore, fileQueue
	} else {
		cache = store.NewSQLiteStore(db)
		queue = outbox.NewSQLiteRepository(db)
	}

	codec := cryptox.NewFieldCodec(app.openCipher(ctx), log)
	if err := cache.Put(ctx, store.DeviceMeta, models.Document{
		"key":             "encryption",
		"enabled":         codec.Enabled(),
		"key_fingerprint": app.keyFingerprint,
	}); err != nil {
		log.Warn(ctx, "recording encryption state failed", "error", err)
	}

	collector := models.CollectorContext{
		PanelID:     cfg.PanelID,
		CollectorID: cfg.CollectorID,
		UserID:      cfg.UserID,
	}
	rem := remote.NewClient(cfg.RemoteURL, cfg.RemoteAPIKey, cfg.RequestTimeout, log)

	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = strings.TrimRight(cfg.RemoteURL, "/") + "/rest/v1/"
	}
	monitor := connectivity.NewMonitor(connectivity.Options{
		ProbeURL:      probeURL,
		ProbeTimeout:  cfg.ProbeTimeout,
		Freshness:     cfg.ProbeFreshness,
		Stabilization: cfg.Stabilization,
		RetryDelay:    cfg.ReconnectDelay,
		ProbeAttempts: cfg.ProbeAttempts,
	}, log)

	engine := syncer.NewEngine(queue, cache, rem, codec, monitor, collector, log)
	monitor.OnReconnect(func() {
		go func() {
			if _, err := engine.SyncNow(context.Background()); err != nil {
				log.Error(context.Background(), "reconnect sync failed", "error", err)
			}
		}()
	})

	app.capture = capture.NewService(queue, cache, rem, codec, monitor, collector, log)
	app.engine = engine
	app.monitor = monitor
	return app, nil
}

// openCipher resolves the at-rest key. Any failure degrades to plaintext
// storage with a loud log line instead of refusing to start.
func (a *App) openCipher(ctx context.Context) *cryptox.Cipher {
	if !a.config.EncryptionEnabled {
		return cryptox.NewPassthrough()
	}

	var (
		key []byte
		err error
	)
	if a.config.Passphrase != "" {
		key, err = cryptox.DeriveKey(a.config.Passphrase, a.config.KeyPath+".salt")
	} else {
		key, err = cryptox.LoadOrCreateKey(a.config.KeyPath)
	}
	if err != nil {
		a.log.Error(ctx, "encryption unavailable, storing plaintext", "error", err)
		return cryptox.NewPassthrough()
	}

	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		a.log.Error(ctx, "encryption unavailable, storing plaintext", "error", err)
		return cryptox.NewPassthrough()
	}
	a.keyFingerprint = cryptox.Fingerprint(key)
	a.log.Info(ctx, "encryption enabled", "key_fingerprint", a.keyFingerprint)
	return cipher
}

// Run starts the periodic reachability watcher and enters the REPL. It
// returns when the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.monitor.Watch(ctx, a.config.WatchInterval)

	printlnFn("FinanceFlow cobrador (type 'help' for commands)")
	if a.degraded {
		printlnFn("WARNING: local database unavailable, running on file fallback")
	}
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) status() string {
	state := a.monitor.State()
	parts := []string{a.config.CollectorID}
	if state.RemoteReachable {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	return strings.Join(parts, " ")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
