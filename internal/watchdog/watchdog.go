// Package watchdog reloads modules when their manifest files change on disk.
package watchdog

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/loader"
	"github.com/oolong-ub/oolong/internal/module"
)

// debounce coalesces the write bursts editors produce into one reload.
const debounce = 300 * time.Millisecond

// Watchdog observes the module directories and drives hot reloads.
type Watchdog struct {
	loader     *loader.Loader
	builtinDir string
	customDir  string

	cancel context.CancelFunc
	done   chan struct{}
}

func New(l *loader.Loader, builtinDir, customDir string) *Watchdog {
	return &Watchdog{loader: l, builtinDir: builtinDir, customDir: customDir}
}

// Start begins watching as a background task. Watching a missing directory
// is skipped, not fatal.
func (w *Watchdog) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	log := ctxlog.FromContext(ctx)
	for _, dir := range []string{w.builtinDir, w.customDir} {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Warn("watch directory skipped", "dir", dir, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, watcher)
	return nil
}

// Stop cancels the watch task and waits for it.
func (w *Watchdog) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Watchdog) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.done)
	defer watcher.Close()
	log := ctxlog.FromContext(ctx)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Editors that save through a temp file surface the change as a
			// rename rather than a write.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".hcl") {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error("watchdog error", "error", err)

		case <-fire:
			fire = nil
			for path := range pending {
				delete(pending, path)
				w.reload(ctx, path)
			}
		}
	}
}

// reload replaces the module backed by path in place. Builtin paths keep
// core origin so the replacement stays unload-protected.
func (w *Watchdog) reload(ctx context.Context, path string) {
	log := ctxlog.FromContext(ctx)
	origin := module.OriginCustom
	if w.builtinDir != "" && filepath.Dir(path) == filepath.Clean(w.builtinDir) {
		origin = module.OriginCore
	}
	name, err := w.loader.LoadFile(ctx, path, origin, true)
	if err != nil {
		log.Error("hot reload failed", "path", path, "error", err)
		return
	}
	log.Info("module hot reloaded", "module", name, "path", path)
}
