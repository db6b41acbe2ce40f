package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oolong-ub/oolong/internal/manifest"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/testutil"
)

type declModule struct {
	module.Base
	decl module.Declaration
}

func (m *declModule) Declare() module.Declaration { return m.decl }

func newDispatcher(t *testing.T, decls ...module.Declaration) (*Dispatcher, *testutil.FakeClient, *registry.Registry) {
	t.Helper()
	client := testutil.NewFakeClient()
	reg := registry.New()
	for i, decl := range decls {
		src := `module "M` + string(rune('A'+i)) + `" {}`
		mf, err := manifest.Parse("m.hcl", []byte(src))
		require.NoError(t, err)
		reg.Merge(registry.NewLoaded(mf, &declModule{decl: decl}, decl, module.OriginCustom, "", nil))
	}
	return New(client, reg, testutil.TempStore(t)), client, reg
}

func selfMessage(text string) *telegram.Message {
	return &telegram.Message{ID: 7, ChatID: 42, SenderID: 1000, Text: text, Outgoing: true}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	prefixes := []string{"."}
	cases := []struct {
		text string
		cmd  string
		args string
		ok   bool
	}{
		{".ping", "ping", "", true},
		{".echo hello world", "echo", "hello world", true},
		{".ECHO x", "echo", "x", true},
		{"ping", "", "", false},
		{".", "", "", false},
		{". ", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		cmd, args, ok := ParseCommand(tc.text, prefixes)
		assert.Equal(t, tc.ok, ok, "text %q", tc.text)
		assert.Equal(t, tc.cmd, cmd, "text %q", tc.text)
		assert.Equal(t, tc.args, args, "text %q", tc.text)
	}
}

func TestParseCommand_MultiplePrefixes(t *testing.T) {
	t.Parallel()

	cmd, _, ok := ParseCommand("!ping", []string{".", "!"})
	require.True(t, ok)
	assert.Equal(t, "ping", cmd)
}

func TestHandleMessage_CommandRunsWithArgs(t *testing.T) {
	t.Parallel()

	var gotArgs string
	d, _, _ := newDispatcher(t, module.Declaration{
		Commands: []module.Command{{
			Name: "echo",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				gotArgs = args
				return nil
			},
		}},
	})

	d.HandleMessage(context.Background(), selfMessage(".echo hello world"))
	assert.Equal(t, "hello world", gotArgs)
}

func TestHandleMessage_UnmatchedCommandIsSilent(t *testing.T) {
	t.Parallel()

	d, client, _ := newDispatcher(t, module.Declaration{})
	d.HandleMessage(context.Background(), selfMessage(".nosuch"))
	assert.Empty(t, client.SentMessages())
}

func TestHandleMessage_DefaultFilterRejectsOtherSenders(t *testing.T) {
	t.Parallel()

	ran := false
	d, _, _ := newDispatcher(t, module.Declaration{
		Commands: []module.Command{{
			Name: "ping",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				ran = true
				return nil
			},
		}},
	})

	stranger := &telegram.Message{ID: 7, ChatID: 42, SenderID: 9999, Text: ".ping"}
	d.HandleMessage(context.Background(), stranger)
	assert.False(t, ran, "default filter only passes messages from the bound account")

	d.HandleMessage(context.Background(), selfMessage(".ping"))
	assert.True(t, ran)
}

func TestHandleMessage_CustomFilterOverridesDefault(t *testing.T) {
	t.Parallel()

	ran := false
	d, _, _ := newDispatcher(t, module.Declaration{
		Commands: []module.Command{{
			Name:   "ping",
			Filter: func(m *telegram.Message) bool { return true },
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				ran = true
				return nil
			},
		}},
	})

	stranger := &telegram.Message{ID: 7, ChatID: 42, SenderID: 9999, Text: ".ping"}
	d.HandleMessage(context.Background(), stranger)
	assert.True(t, ran)
}

func TestHandleMessage_AliasResolvesToSameHandler(t *testing.T) {
	t.Parallel()

	count := 0
	decl := module.Declaration{
		Commands: []module.Command{{
			Name: "restart",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				count++
				return nil
			},
		}},
	}

	client := testutil.NewFakeClient()
	reg := registry.New()
	mf, err := manifest.Parse("m.hcl", []byte(`
module "Manager" {
  command "restart" { aliases = ["r"] }
}
`))
	require.NoError(t, err)
	reg.Merge(registry.NewLoaded(mf, &declModule{decl: decl}, decl, module.OriginCore, "", nil))
	d := New(client, reg, testutil.TempStore(t))

	d.HandleMessage(context.Background(), selfMessage(".restart"))
	d.HandleMessage(context.Background(), selfMessage(".r"))
	assert.Equal(t, 2, count)
}

func TestHandleMessage_WatcherIsolation(t *testing.T) {
	t.Parallel()

	var order []string
	decl := module.Declaration{
		Watchers: []module.Watcher{
			{Run: func(ctx context.Context, m *telegram.Message) error {
				order = append(order, "boom")
				panic("watcher exploded")
			}},
			{Run: func(ctx context.Context, m *telegram.Message) error {
				order = append(order, "second")
				return nil
			}},
		},
		Commands: []module.Command{{
			Name: "ping",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				order = append(order, "command")
				return nil
			},
		}},
	}
	d, _, _ := newDispatcher(t, decl)

	d.HandleMessage(context.Background(), selfMessage(".ping"))
	d.HandleMessage(context.Background(), selfMessage(".ping"))

	assert.Equal(t, []string{"boom", "second", "command", "boom", "second", "command"}, order,
		"a panicking watcher must not block other watchers, the command, or later events")
}

func TestHandleMessage_CommandErrorRepliedInChat(t *testing.T) {
	t.Parallel()

	d, client, _ := newDispatcher(t, module.Declaration{
		Commands: []module.Command{{
			Name: "bad",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				return errors.New("database on fire")
			},
		}},
	})

	d.HandleMessage(context.Background(), selfMessage(".bad"))

	sent, ok := client.LastSent()
	require.True(t, ok, "the failure must be surfaced in-chat")
	assert.Contains(t, sent.Text, "database on fire")
	assert.Contains(t, sent.Text, ".bad")
	assert.True(t, sent.Edit, "self-originated messages are edited in place")
}

func TestHandleMessage_CommandPanicRepliedInChat(t *testing.T) {
	t.Parallel()

	d, client, _ := newDispatcher(t, module.Declaration{
		Commands: []module.Command{{
			Name: "crash",
			Run: func(ctx context.Context, m *telegram.Message, args string) error {
				panic("nil map write")
			},
		}},
	})

	d.HandleMessage(context.Background(), selfMessage(".crash"))

	sent, ok := client.LastSent()
	require.True(t, ok)
	assert.Contains(t, sent.Text, "nil map write")
}

func TestHandleRaw_PerHandlerIsolation(t *testing.T) {
	t.Parallel()

	var seen []string
	d, _, _ := newDispatcher(t, module.Declaration{
		RawHandlers: []module.RawHandler{
			{
				Filter: func(u telegram.RawUpdate) bool { return true },
				Run: func(ctx context.Context, u telegram.RawUpdate) error {
					seen = append(seen, "first")
					return errors.New("fail")
				},
			},
			{
				Filter: func(u telegram.RawUpdate) bool { _, ok := u.(string); return ok },
				Run: func(ctx context.Context, u telegram.RawUpdate) error {
					seen = append(seen, "filtered")
					return nil
				},
			},
		},
	})

	d.HandleRaw(context.Background(), 123)
	d.HandleRaw(context.Background(), "str")
	assert.Equal(t, []string{"first", "first", "filtered"}, seen)
}

func TestHandleRaw_NilFilterNeverRuns(t *testing.T) {
	t.Parallel()

	ran := 0
	d, _, _ := newDispatcher(t, module.Declaration{
		RawHandlers: []module.RawHandler{
			{Run: func(ctx context.Context, u telegram.RawUpdate) error {
				ran++
				return nil
			}},
		},
	})

	d.HandleRaw(context.Background(), 123)
	d.HandleRaw(context.Background(), "str")
	assert.Zero(t, ran)
}

func TestPrefixes_StoredSetWins(t *testing.T) {
	t.Parallel()

	store := testutil.TempStore(t)
	d := New(testutil.NewFakeClient(), registry.New(), store)
	assert.Equal(t, []string{"."}, d.Prefixes())

	require.NoError(t, store.Set("oolong", "prefix", []string{"!", "."}))
	assert.Equal(t, []string{"!", "."}, d.Prefixes())
}
