package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/oolong-ub/oolong/internal/dispatcher"
	"github.com/oolong-ub/oolong/internal/inline"
	"github.com/oolong-ub/oolong/internal/loader"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/watchdog"
)

// App encapsulates the userbot's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	cfg    *Config
	logger *slog.Logger

	closeLog func()

	store    *storage.Store
	client   *telegram.Gogram
	registry *registry.Registry
	loader   *loader.Loader
	disp     *dispatcher.Dispatcher
	inline   *inline.Dispatcher
	watchdog *watchdog.Watchdog
}

// New wires the composition root: logger, store, client, registry, loader,
// both dispatchers and the watchdog. Nothing connects yet; Run does that.
func New(outW io.Writer, cfg *Config) (*App, error) {
	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile, outW)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.StorePath())
	if err != nil {
		closeLog()
		return nil, err
	}
	if cfg.LogFile != "" {
		if err := store.Set("oolong", "log_file", cfg.LogFile); err != nil {
			closeLog()
			return nil, err
		}
	}

	client, err := telegram.NewGogram(telegram.GogramConfig{
		AppID:       cfg.APIID,
		AppHash:     cfg.APIHash,
		SessionFile: cfg.SessionPath(),
		TestMode:    cfg.TestMode,
	})
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("telegram client: %w", err)
	}

	reg := registry.New()

	inl := inline.New(inline.Options{
		Client:   client,
		Registry: reg,
		Store:    store,
		Token:    cfg.BotToken,
	})

	ldr := loader.New(loader.Options{
		Factories:  newFactories(),
		Registry:   reg,
		Store:      store,
		Client:     client,
		Inline:     inl,
		BuiltinDir: cfg.ModulesDir,
		CustomDir:  cfg.CustomDir,
	})

	a := &App{
		outW:     outW,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		store:    store,
		client:   client,
		registry: reg,
		loader:   ldr,
		disp:     dispatcher.New(client, reg, store),
		inline:   inl,
	}
	if cfg.HotReload {
		a.watchdog = watchdog.New(ldr, cfg.ModulesDir, cfg.CustomDir)
	}
	return a, nil
}

// Registry returns the live registry, primarily for tests.
func (a *App) Registry() *registry.Registry { return a.registry }
