package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/loader"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/testutil"
)

type markerModule struct {
	module.Base
	generation int
}

func (m *markerModule) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{{
			Name: "mark",
			Run:  func(ctx context.Context, msg *telegram.Message, args string) error { return nil },
		}},
	}
}

const markerManifest = `
module "Marker" {
  command "mark" {}
}
`

func TestHotReloadOnFileChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "marker.hcl")
	require.NoError(t, os.WriteFile(path, []byte(markerManifest), 0o644))

	reg := registry.New()
	generation := 0
	factories := module.NewFactories()
	factories.Register("marker", func() module.Module {
		generation++
		return &markerModule{generation: generation}
	})
	l := loader.New(loader.Options{
		Factories: factories,
		Registry:  reg,
		Store:     testutil.TempStore(t),
		Client:    testutil.NewFakeClient(),
		CustomDir: dir,
	})
	ctx := context.Background()
	_, err := l.LoadFile(ctx, path, module.OriginCustom, false)
	require.NoError(t, err)

	w := New(l, "", dir)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(markerManifest), 0o644))

	require.Eventually(t, func() bool {
		loaded, ok := reg.Lookup("Marker")
		return ok && loaded.Instance.(*markerModule).generation == 2
	}, 5*time.Second, 50*time.Millisecond, "the changed file replaces the module in place")
	assert.Len(t, reg.Modules(), 1)
}

func TestHotReloadOnSaveViaRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "marker.hcl")
	require.NoError(t, os.WriteFile(path, []byte(markerManifest), 0o644))

	reg := registry.New()
	generation := 0
	factories := module.NewFactories()
	factories.Register("marker", func() module.Module {
		generation++
		return &markerModule{generation: generation}
	})
	l := loader.New(loader.Options{
		Factories: factories,
		Registry:  reg,
		Store:     testutil.TempStore(t),
		Client:    testutil.NewFakeClient(),
		CustomDir: dir,
	})
	ctx := context.Background()
	_, err := l.LoadFile(ctx, path, module.OriginCustom, false)
	require.NoError(t, err)

	w := New(l, "", dir)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Write a temp file and move it over the manifest, the way most
	// editors save.
	tmp := filepath.Join(dir, ".marker.hcl.swp.hcl")
	require.NoError(t, os.WriteFile(tmp, []byte(markerManifest), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		loaded, ok := reg.Lookup("Marker")
		return ok && loaded.Instance.(*markerModule).generation >= 2
	}, 5*time.Second, 50*time.Millisecond)
	assert.Len(t, reg.Modules(), 1)
}

func TestNonManifestChangesIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := registry.New()
	factories := module.NewFactories()
	l := loader.New(loader.Options{
		Factories: factories,
		Registry:  reg,
		Store:     testutil.TempStore(t),
		Client:    testutil.NewFakeClient(),
		CustomDir: dir,
	})

	w := New(l, "", dir)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, reg.Modules())
}
