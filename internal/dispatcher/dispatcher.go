// Package dispatcher routes inbound client updates to registered modules.
// It is the crash-isolation boundary: a handler error or panic is logged,
// for commands surfaced as an in-chat reply, and never propagated to the
// update source.
package dispatcher

import (
	"context"
	"fmt"
	"html"
	"runtime/debug"
	"strings"
	"unicode"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
)

const (
	storeNamespace = "oolong"
	prefixKey      = "prefix"
)

var defaultPrefixes = []string{"."}

// Dispatcher reads live registry snapshots and invokes module handlers.
type Dispatcher struct {
	client telegram.Client
	reg    *registry.Registry
	store  *storage.Store
}

func New(client telegram.Client, reg *registry.Registry, store *storage.Store) *Dispatcher {
	return &Dispatcher{client: client, reg: reg, store: store}
}

// Prefixes returns the active command prefix set, defaulting to ".".
func (d *Dispatcher) Prefixes() []string {
	return d.store.GetStrings(storeNamespace, prefixKey, defaultPrefixes)
}

// ParseCommand applies the command grammar: the text is a command iff it
// starts with one of the prefixes (first match wins) and has non-empty
// content after it. The remainder splits on the first whitespace run into
// the lowercased command token and the raw argument text.
func ParseCommand(text string, prefixes []string) (cmd, args string, ok bool) {
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(text, p) {
			continue
		}
		rest := text[len(p):]
		if strings.TrimSpace(rest) == "" {
			return "", "", false
		}
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			cmd, args = rest[:i], strings.TrimSpace(rest[i:])
		} else {
			cmd = rest
		}
		if cmd == "" {
			return "", "", false
		}
		return strings.ToLower(cmd), args, true
	}
	return "", "", false
}

// HandleMessage dispatches one inbound or edited message: every watcher runs
// first in registration order, each isolated, then the text is parsed as a
// command. Unmatched commands are normal chatter and end dispatch silently.
func (d *Dispatcher) HandleMessage(ctx context.Context, m *telegram.Message) {
	log := ctxlog.FromContext(ctx)

	for _, w := range d.reg.Watchers() {
		if !d.allows(w.Watcher.Filter, m) {
			continue
		}
		d.runWatcher(ctx, w, m)
	}

	cmd, args, ok := ParseCommand(m.Text, d.Prefixes())
	if !ok {
		return
	}
	entry, ok := d.reg.Command(cmd)
	if !ok {
		return
	}
	if !d.allows(entry.Command.Filter, m) {
		return
	}

	log.Debug("dispatching command",
		"command", entry.Command.Name,
		"module", entry.Module.Name(),
		"chat_id", m.ChatID)

	if err := d.runCommand(ctx, entry, m, args); err != nil {
		log.Error("command failed",
			"command", entry.Command.Name,
			"module", entry.Module.Name(),
			"error", err)
		d.replyError(ctx, m, err)
	}
}

// HandleRaw dispatches one raw protocol update to every raw handler whose
// filter accepts it, each isolated from the others. Raw updates carry no
// provable origin, so the default self-only rule rejects them: a raw handler
// only runs when its own filter claims the update.
func (d *Dispatcher) HandleRaw(ctx context.Context, u telegram.RawUpdate) {
	log := ctxlog.FromContext(ctx)
	for _, h := range d.reg.RawHandlers() {
		if h.Handler.Filter == nil || !h.Handler.Filter(u) {
			continue
		}
		if err := d.runRaw(ctx, h, u); err != nil {
			log.Error("raw handler failed", "module", h.Module.Name(), "error", err)
		}
	}
}

// allows applies a handler's filter. A nil filter means the default rule:
// only messages originating from the bound account are actionable.
func (d *Dispatcher) allows(filter module.MessageFilter, m *telegram.Message) bool {
	if filter != nil {
		return filter(m)
	}
	me := d.client.Me()
	return m.Outgoing || m.SenderID == me.ID
}

func (d *Dispatcher) runWatcher(ctx context.Context, w *registry.WatcherEntry, m *telegram.Message) {
	log := ctxlog.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("watcher panicked",
				"module", w.Module.Name(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := w.Watcher.Run(ctx, m); err != nil {
		log.Error("watcher failed", "module", w.Module.Name(), "error", err)
	}
}

func (d *Dispatcher) runCommand(ctx context.Context, e *registry.CommandEntry, m *telegram.Message, args string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("command panicked",
				"command", e.Command.Name,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Command.Run(ctx, m, args)
}

func (d *Dispatcher) runRaw(ctx context.Context, h *registry.RawEntry, u telegram.RawUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("raw handler panicked",
				"module", h.Module.Name(),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handler.Run(ctx, u)
}

// replyError surfaces a command failure in-chat. A failure of the reply
// itself is only logged.
func (d *Dispatcher) replyError(ctx context.Context, m *telegram.Message, cmdErr error) {
	text := fmt.Sprintf(
		"<b>⚠️ Command failed</b>\n<code>%s</code>\n\n<pre>%s</pre>",
		html.EscapeString(m.Text),
		html.EscapeString(cmdErr.Error()),
	)
	if _, err := telegram.Answer(ctx, d.client, m, text); err != nil {
		ctxlog.FromContext(ctx).Error("error reply failed", "error", err)
	}
}
