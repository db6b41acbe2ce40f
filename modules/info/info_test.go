package info

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/loader"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/testutil"
	"github.com/oolong-ub/oolong/internal/version"
)

func newHarness(t *testing.T, store *storage.Store) (*registry.Registry, *testutil.FakeClient) {
	t.Helper()
	client := testutil.NewFakeClient()
	client.Self.FirstName = "Tester"
	reg := registry.New()
	factories := module.NewFactories()
	Register(factories)
	l := loader.New(loader.Options{
		Factories: factories,
		Registry:  reg,
		Store:     store,
		Client:    client,
	})
	_, err := l.LoadSource(context.Background(), ManifestSource, module.OriginCore, false)
	require.NoError(t, err)
	return reg, client
}

func runCmd(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()
	e, ok := reg.Command(name)
	require.True(t, ok)
	msg := &telegram.Message{ID: 1, ChatID: 7, SenderID: 1000, Outgoing: true}
	require.NoError(t, e.Command.Run(context.Background(), msg, ""))
}

func TestPingEditsWithRoundTrip(t *testing.T) {
	t.Parallel()

	reg, client := newHarness(t, testutil.TempStore(t))
	runCmd(t, reg, "ping")

	sent, ok := client.LastSent()
	require.True(t, ok)
	assert.True(t, sent.Edit)
	assert.Contains(t, sent.Text, "🏓")
}

func TestInfoShowsIdentityAndVersion(t *testing.T) {
	t.Parallel()

	reg, client := newHarness(t, testutil.TempStore(t))
	runCmd(t, reg, "info")

	sent, ok := client.LastSent()
	require.True(t, ok)
	assert.Contains(t, sent.Text, version.Current)
	assert.Contains(t, sent.Text, "Tester")
	assert.Contains(t, sent.Text, "Modules: <code>1</code>")
}

func TestInfoRespectsShowSystemOverride(t *testing.T) {
	t.Parallel()

	store := testutil.TempStore(t)
	require.NoError(t, store.Set("info", "config", map[string]string{"show_system": "false"}))
	reg, client := newHarness(t, store)
	runCmd(t, reg, "info")

	sent, _ := client.LastSent()
	assert.NotContains(t, sent.Text, "CPU", "stored override disables the system block")
}
