package app

import (
	"context"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/version"
)

// Run connects the client, loads every module and dispatches updates until
// ctx is cancelled, then joins the background tasks in reverse start order.
func (a *App) Run(ctx context.Context) error {
	defer a.closeLog()
	ctx = ctxlog.WithLogger(ctx, a.logger)
	log := a.logger

	log.Info("starting oolong", "version", version.Current, "test_mode", a.cfg.TestMode)

	if err := a.client.Start(); err != nil {
		return err
	}
	me := a.client.Me()
	log.Info("signed in", "user", me.Username, "id", me.ID)

	a.client.OnMessage(func(m *telegram.Message) {
		a.disp.HandleMessage(ctx, m)
	})
	a.client.OnEdited(func(m *telegram.Message) {
		a.disp.HandleMessage(ctx, m)
	})
	a.client.OnRaw(func(u telegram.RawUpdate) {
		a.disp.HandleRaw(ctx, u)
	})

	if err := ensureBuiltinManifests(a.cfg.ModulesDir); err != nil {
		return err
	}
	a.loader.LoadAll(ctx)
	log.Info("modules loaded", "count", len(a.registry.Modules()))

	a.inline.Start(ctx)

	if a.watchdog != nil {
		if err := a.watchdog.Start(ctx); err != nil {
			log.Error("watchdog start failed, hot reload disabled", "error", err)
			a.watchdog = nil
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	if a.watchdog != nil {
		a.watchdog.Stop()
	}
	a.inline.Stop()
	if err := a.client.Stop(); err != nil {
		log.Warn("client stop failed", "error", err)
	}
	return nil
}
