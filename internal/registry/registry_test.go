package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/manifest"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

type fakeModule struct {
	module.Base
	decl module.Declaration
}

func (f *fakeModule) Declare() module.Declaration { return f.decl }

func loadFake(t *testing.T, name string, manifestSrc string, decl module.Declaration) *Loaded {
	t.Helper()
	m, err := manifest.Parse(name+".hcl", []byte(manifestSrc))
	require.NoError(t, err)
	return NewLoaded(m, &fakeModule{decl: decl}, decl, module.OriginCustom, "", nil)
}

func pingDecl(name string) module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: name, Run: func(ctx context.Context, m *telegram.Message, args string) error { return nil }},
		},
	}
}

func TestMergeAndCommandResolution(t *testing.T) {
	t.Parallel()

	r := New()
	l := loadFake(t, "ping", `
module "Ping" {
  command "ping" { aliases = ["p"] }
}
`, pingDecl("ping"))
	r.Merge(l)

	e, ok := r.Command("PING")
	require.True(t, ok, "command lookup should be case-insensitive")
	assert.Same(t, l, e.Module)

	e, ok = r.Command("p")
	require.True(t, ok, "alias should resolve to its command")
	assert.Equal(t, "ping", e.Command.Name)

	_, ok = r.Command("pong")
	assert.False(t, ok)
}

func TestPurgeEvictsEverythingByIdentity(t *testing.T) {
	t.Parallel()

	r := New()
	decl := module.Declaration{
		Commands: []module.Command{{Name: "ping"}},
		Watchers: []module.Watcher{
			{Run: func(ctx context.Context, m *telegram.Message) error { return nil }},
		},
		RawHandlers: []module.RawHandler{
			{Run: func(ctx context.Context, u telegram.RawUpdate) error { return nil }},
		},
		InlineHandlers:   []module.InlineHandler{{Name: "ping_inline"}},
		CallbackHandlers: []module.CallbackHandler{{Name: "ping_cb"}},
	}
	l := loadFake(t, "ping", `
module "Ping" {
  command "ping" { aliases = ["p"] }
}
`, decl)
	r.Merge(l)
	require.Len(t, r.Modules(), 1)

	r.Purge(l)

	assert.Empty(t, r.Modules())
	_, ok := r.Command("ping")
	assert.False(t, ok)
	_, ok = r.Command("p")
	assert.False(t, ok, "aliases to evicted commands are dropped")
	assert.Empty(t, r.Watchers())
	assert.Empty(t, r.RawHandlers())
	_, ok = r.InlineHandler("ping_inline")
	assert.False(t, ok)
	assert.Empty(t, r.CallbackHandlers())
}

func TestReloadSameName_NewEntryWins(t *testing.T) {
	t.Parallel()

	r := New()
	old := loadFake(t, "ping", `
module "Ping" {
  command "ping" {}
}
`, pingDecl("ping"))
	r.Merge(old)

	renewed := loadFake(t, "ping", `
module "Ping" {
  command "ping" {}
}
`, pingDecl("ping"))
	r.Merge(renewed)
	r.Purge(old)

	e, ok := r.Command("ping")
	require.True(t, ok, "reloaded module keeps the command after the old entry is purged")
	assert.Same(t, renewed, e.Module)
	require.Len(t, r.Modules(), 1)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := New()
	l := loadFake(t, "ping", `module "Ping" {}`, module.Declaration{})
	r.Merge(l)

	got, ok := r.Lookup("pInG")
	require.True(t, ok)
	assert.Same(t, l, got)
}

func TestCommandNamesSorted(t *testing.T) {
	t.Parallel()

	r := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		src := fmt.Sprintf(`
module "%s" {
  command "%s" {}
}
`, name, name)
		r.Merge(loadFake(t, name, src, pingDecl(name)))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.CommandNames())
}

func TestWatcherOrderIsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := New()
	watcher := module.Watcher{Run: func(ctx context.Context, m *telegram.Message) error { return nil }}
	first := loadFake(t, "a", `module "A" {}`, module.Declaration{Watchers: []module.Watcher{watcher}})
	second := loadFake(t, "b", `module "B" {}`, module.Declaration{Watchers: []module.Watcher{watcher}})
	r.Merge(first)
	r.Merge(second)

	ws := r.Watchers()
	require.Len(t, ws, 2)
	assert.Same(t, first, ws[0].Module)
	assert.Same(t, second, ws[1].Module)
}
