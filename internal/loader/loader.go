// Package loader turns module manifests into live registry entries. It owns
// the validation gate (structure, implementation binding, version check,
// name-conflict policy) and the load/unload lifecycle, and implements the
// Host surface management commands drive.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/fsutil"
	"github.com/oolong-ub/oolong/internal/manifest"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/version"
)

// Builtins is the allow-list for the built-in modules directory. Files there
// with any other base name are skipped with a warning.
var Builtins = []string{"help", "info", "logs", "manager", "terminal"}

// Options carries the loader's collaborators and source locations.
type Options struct {
	Factories *module.Factories
	Registry  *registry.Registry
	Store     *storage.Store
	Client    telegram.Client
	Inline    module.InlineSender

	// BuiltinDir and CustomDir are the two fixed manifest locations LoadAll
	// scans, in that order.
	BuiltinDir string
	CustomDir  string
}

// Loader validates and loads modules into the registry.
type Loader struct {
	opts Options
	host module.Host
}

func New(opts Options) *Loader {
	l := &Loader{opts: opts}
	l.host = l
	return l
}

var _ module.Host = (*Loader)(nil)

// LoadFile loads one manifest file. With hotReload set, an already-loaded
// module of the same name is replaced in place, core modules included.
func (l *Loader) LoadFile(ctx context.Context, path string, origin module.Origin, hotReload bool) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read module %s: %w", path, err)
	}
	return l.load(ctx, filepath.Base(path), src, origin, hotReload)
}

// LoadSource implements module.Host: loads a module from an in-memory
// manifest blob. With save set, the source is persisted into the custom
// modules directory so it survives restarts.
func (l *Loader) LoadSource(ctx context.Context, src []byte, origin module.Origin, save bool) (string, error) {
	name, err := l.load(ctx, "<string>", src, origin, false)
	if err != nil {
		return "", err
	}
	if save && l.opts.CustomDir != "" {
		loaded, ok := l.opts.Registry.Lookup(name)
		if ok {
			path := filepath.Join(l.opts.CustomDir, loaded.Manifest.Impl+".hcl")
			if err := os.MkdirAll(l.opts.CustomDir, 0o755); err != nil {
				return name, fmt.Errorf("save module %s: %w", name, err)
			}
			if err := os.WriteFile(path, src, 0o644); err != nil {
				return name, fmt.Errorf("save module %s: %w", name, err)
			}
		}
	}
	return name, nil
}

// load is the single validation and registration path. No registry mutation
// happens before every gate has passed.
func (l *Loader) load(ctx context.Context, filename string, src []byte, origin module.Origin, hotReload bool) (string, error) {
	log := ctxlog.FromContext(ctx)

	mf, err := manifest.Parse(filename, src)
	if err != nil {
		return "", err
	}

	if err := checkVersion(mf.MinVersion); err != nil {
		return "", err
	}

	var replaced *registry.Loaded
	if prev, ok := l.opts.Registry.Lookup(mf.Name); ok {
		if !hotReload {
			return "", &module.AlreadyLoadedError{Name: prev.Name()}
		}
		replaced = prev
	}

	inst, ok := l.opts.Factories.New(mf.Impl)
	if !ok {
		return "", &module.StructureError{
			Reason: fmt.Sprintf("module %q binds to unregistered implementation %q", mf.Name, mf.Impl),
		}
	}

	if b, ok := inst.(module.Binder); ok {
		b.Bind(module.Binding{
			Client: l.opts.Client,
			Store:  l.opts.Store,
			Inline: l.opts.Inline,
			Host:   l.host,
			Log:    log.With("module", mf.Name),
		})
	}

	if c, ok := inst.(module.Configurable); ok {
		overrides := make(map[string]string)
		if _, err := l.opts.Store.Get(mf.Impl, "config", &overrides); err != nil {
			return "", err
		}
		if err := manifest.ApplyConfig(mf.Config, overrides, c.Config()); err != nil {
			return "", &module.StructureError{
				Reason: fmt.Sprintf("module %q: %v", mf.Name, err),
			}
		}
	}

	decl := inst.Declare()
	if err := checkParity(mf, decl); err != nil {
		return "", err
	}

	// All gates passed. A hot reload replaces the previous entry now, before
	// the new one registers, so the name is never claimed twice.
	if replaced != nil {
		l.unloadEntry(ctx, replaced)
	}

	loaded := registry.NewLoaded(mf, inst, decl, origin, string(src), l.opts.Store)
	l.opts.Registry.Merge(loaded)

	if h, ok := inst.(module.LoadHook); ok {
		if err := h.OnLoad(ctx); err != nil {
			l.opts.Registry.Purge(loaded)
			return "", fmt.Errorf("module %q on-load: %w", mf.Name, err)
		}
	}

	log.Info("module loaded", "module", mf.Name, "origin", string(origin), "commands", len(decl.Commands))
	return mf.Name, nil
}

// Unload implements module.Host: a user-initiated removal. Core modules are
// protected; unloading an absent name is a no-op signalled by an empty name.
func (l *Loader) Unload(ctx context.Context, name string) (string, error) {
	loaded, ok := l.opts.Registry.Lookup(name)
	if !ok {
		return "", nil
	}
	if loaded.Origin() == module.OriginCore {
		return "", &module.CoreProtectedError{Name: loaded.Name()}
	}
	l.unloadEntry(ctx, loaded)
	return loaded.Name(), nil
}

// unloadEntry runs the unload hook then purges the entry. The hook runs
// outside the registry lock; its failure is logged, never propagated, so a
// broken module can always be removed.
func (l *Loader) unloadEntry(ctx context.Context, loaded *registry.Loaded) {
	log := ctxlog.FromContext(ctx)
	if h, ok := loaded.Instance.(module.UnloadHook); ok {
		if err := h.OnUnload(ctx); err != nil {
			log.Error("module on-unload failed", "module", loaded.Name(), "error", err)
		}
	}
	l.opts.Registry.Purge(loaded)
	log.Info("module unloaded", "module", loaded.Name())
}

// Lookup implements module.Host.
func (l *Loader) Lookup(name string) (module.Info, bool) {
	loaded, ok := l.opts.Registry.Lookup(name)
	if !ok {
		return nil, false
	}
	return loaded, true
}

// Modules implements module.Host.
func (l *Loader) Modules() []module.Info {
	live := l.opts.Registry.Modules()
	out := make([]module.Info, len(live))
	for i, m := range live {
		out[i] = m
	}
	return out
}

// LoadAll loads the two fixed manifest locations: the built-in directory,
// allow-list enforced, then the custom directory unconditionally. Files load
// in lexicographic order within each directory; a failing file is logged and
// skipped, the rest continue.
func (l *Loader) LoadAll(ctx context.Context) {
	log := ctxlog.FromContext(ctx)

	builtin, err := fsutil.FindFilesByExtension(l.opts.BuiltinDir, ".hcl")
	if err != nil {
		log.Error("scan builtin modules failed", "dir", l.opts.BuiltinDir, "error", err)
	}
	for _, path := range builtin {
		if !isBuiltinName(fsutil.BaseName(path)) {
			log.Warn("unexpected file in builtin modules directory, skipping", "path", path)
			continue
		}
		if _, err := l.LoadFile(ctx, path, module.OriginCore, false); err != nil {
			log.Error("builtin module failed to load", "path", path, "error", err)
		}
	}

	custom, err := fsutil.FindFilesByExtension(l.opts.CustomDir, ".hcl")
	if err != nil {
		log.Error("scan custom modules failed", "dir", l.opts.CustomDir, "error", err)
	}
	for _, path := range custom {
		if _, err := l.LoadFile(ctx, path, module.OriginCustom, false); err != nil {
			log.Error("custom module failed to load", "path", path, "error", err)
		}
	}
}

func isBuiltinName(name string) bool {
	for _, b := range Builtins {
		if strings.EqualFold(name, b) {
			return true
		}
	}
	return false
}

// checkVersion gates a manifest's minimum host version. Sentinel values
// always pass; anything else must be a well-formed triple no newer than the
// running host.
func checkVersion(min string) error {
	if version.IsSentinel(min) {
		return nil
	}
	req, err := version.Parse(min)
	if err != nil {
		return &module.VersionError{Requirement: min, Host: version.Current, Reason: err.Error()}
	}
	if req.Compare(version.MustParse(version.Current)) > 0 {
		return &module.VersionError{Requirement: min, Host: version.Current}
	}
	return nil
}

// checkParity verifies the manifest's command block and the implementation's
// declaration describe the same command set.
func checkParity(mf *manifest.Manifest, decl module.Declaration) error {
	declared := make(map[string]bool, len(decl.Commands))
	for _, c := range decl.Commands {
		name := strings.ToLower(c.Name)
		if declared[name] {
			return &module.StructureError{
				Reason: fmt.Sprintf("module %q declares command %q twice", mf.Name, name),
			}
		}
		declared[name] = true
	}
	for name := range mf.Commands {
		if !declared[name] {
			return &module.StructureError{
				Reason: fmt.Sprintf("module %q manifest names command %q, implementation does not declare it", mf.Name, name),
			}
		}
	}
	for name := range declared {
		if _, ok := mf.Commands[name]; !ok {
			return &module.StructureError{
				Reason: fmt.Sprintf("module %q implements command %q, manifest does not declare it", mf.Name, name),
			}
		}
	}
	return nil
}
