package terminal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/loader"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/testutil"
)

func newHarness(t *testing.T) (*registry.Registry, *testutil.FakeClient) {
	t.Helper()
	client := testutil.NewFakeClient()
	reg := registry.New()
	factories := module.NewFactories()
	Register(factories)
	l := loader.New(loader.Options{
		Factories: factories,
		Registry:  reg,
		Store:     testutil.TempStore(t),
		Client:    client,
	})
	_, err := l.LoadSource(context.Background(), ManifestSource, module.OriginCore, false)
	require.NoError(t, err)
	return reg, client
}

func runExec(t *testing.T, reg *registry.Registry, args string) error {
	t.Helper()
	e, ok := reg.Command("exec")
	require.True(t, ok)
	msg := &telegram.Message{ID: 1, ChatID: 7, SenderID: 1000, Outgoing: true}
	return e.Command.Run(context.Background(), msg, args)
}

func TestExecCapturesOutput(t *testing.T) {
	t.Parallel()

	reg, client := newHarness(t)
	require.NoError(t, runExec(t, reg, "echo hello"))

	sent, ok := client.LastSent()
	require.True(t, ok)
	assert.Contains(t, sent.Text, "hello")
	assert.Contains(t, sent.Text, "Done in")
}

func TestExecNonZeroExitReported(t *testing.T) {
	t.Parallel()

	reg, client := newHarness(t)
	require.NoError(t, runExec(t, reg, "exit 3"))

	sent, _ := client.LastSent()
	assert.Contains(t, sent.Text, "exit status 3")
}

func TestExecAliasRegistered(t *testing.T) {
	t.Parallel()

	reg, _ := newHarness(t)
	_, ok := reg.Command("sh")
	assert.True(t, ok)
}

func TestExecEmptyArgsShowsUsage(t *testing.T) {
	t.Parallel()

	reg, client := newHarness(t)
	require.NoError(t, runExec(t, reg, ""))
	sent, _ := client.LastSent()
	assert.Contains(t, sent.Text, "Usage")
}
