package app

import (
	"os"
	"path/filepath"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/modules/help"
	"github.com/oolong-ub/oolong/modules/info"
	"github.com/oolong-ub/oolong/modules/logs"
	"github.com/oolong-ub/oolong/modules/manager"
	"github.com/oolong-ub/oolong/modules/terminal"
)

// builtin couples a compiled implementation with its shipped manifest.
type builtin struct {
	name     string
	manifest []byte
	register func(*module.Factories)
}

var builtins = []builtin{
	{"help", help.ManifestSource, help.Register},
	{"info", info.ManifestSource, info.Register},
	{"logs", logs.ManifestSource, logs.Register},
	{"manager", manager.ManifestSource, manager.Register},
	{"terminal", terminal.ManifestSource, terminal.Register},
}

// newFactories registers every built-in implementation.
func newFactories() *module.Factories {
	f := module.NewFactories()
	for _, b := range builtins {
		b.register(f)
	}
	return f
}

// ensureBuiltinManifests materializes the shipped manifests into the
// built-in modules directory. Existing files are left alone so a hot-reload
// edit survives restarts.
func ensureBuiltinManifests(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, b := range builtins {
		path := filepath.Join(dir, b.name+".hcl")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, b.manifest, 0o644); err != nil {
			return err
		}
	}
	return nil
}
