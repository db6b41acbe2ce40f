// Package registry holds the dispatch tables the message and inline
// dispatchers read from. All tables are keyed or ordered deterministically
// and guarded by one RWMutex: a Merge or Purge is atomic, so a dispatcher
// snapshot never observes a half-registered module.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/oolong-ub/oolong/internal/module"
)

// CommandEntry pairs a command with the module that owns it.
type CommandEntry struct {
	Module  *Loaded
	Command module.Command
}

// WatcherEntry pairs a watcher with its owner.
type WatcherEntry struct {
	Module  *Loaded
	Watcher module.Watcher
}

// RawEntry pairs a raw update handler with its owner.
type RawEntry struct {
	Module  *Loaded
	Handler module.RawHandler
}

// MessageEntry pairs a bot-message handler with its owner.
type MessageEntry struct {
	Module  *Loaded
	Handler module.MessageHandler
}

// InlineEntry pairs an inline query handler with its owner.
type InlineEntry struct {
	Module  *Loaded
	Handler module.InlineHandler
}

// CallbackEntry pairs a callback handler with its owner.
type CallbackEntry struct {
	Module  *Loaded
	Handler module.CallbackHandler
}

// Registry is the set of live modules and their dispatch tables.
type Registry struct {
	mu sync.RWMutex

	modules  []*Loaded
	commands map[string]*CommandEntry
	aliases  map[string]string

	watchers        []*WatcherEntry
	rawHandlers     []*RawEntry
	messageHandlers []*MessageEntry
	inline          map[string]*InlineEntry
	callbacks       []*CallbackEntry
}

func New() *Registry {
	return &Registry{
		commands: make(map[string]*CommandEntry),
		aliases:  make(map[string]string),
		inline:   make(map[string]*InlineEntry),
	}
}

// Merge registers a loaded module: appends it to the live list and installs
// its commands, aliases, watchers and handlers in one atomic step. A
// registered command or alias name overrides any earlier claim to the same
// name; the later load wins until it is purged.
func (r *Registry) Merge(l *Loaded) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modules = append(r.modules, l)

	for _, c := range l.Decl.Commands {
		name := strings.ToLower(c.Name)
		r.commands[name] = &CommandEntry{Module: l, Command: c}
		spec := l.Manifest.Commands[name]
		for _, a := range spec.Aliases {
			r.aliases[strings.ToLower(a)] = name
		}
	}
	for _, w := range l.Decl.Watchers {
		r.watchers = append(r.watchers, &WatcherEntry{Module: l, Watcher: w})
	}
	for _, h := range l.Decl.RawHandlers {
		r.rawHandlers = append(r.rawHandlers, &RawEntry{Module: l, Handler: h})
	}
	for _, h := range l.Decl.MessageHandlers {
		r.messageHandlers = append(r.messageHandlers, &MessageEntry{Module: l, Handler: h})
	}
	for _, h := range l.Decl.InlineHandlers {
		r.inline[strings.ToLower(h.Name)] = &InlineEntry{Module: l, Handler: h}
	}
	for _, h := range l.Decl.CallbackHandlers {
		r.callbacks = append(r.callbacks, &CallbackEntry{Module: l, Handler: h})
	}
}

// Purge removes a module from the live list and evicts every table entry it
// owns, by pointer identity. Aliases pointing at an evicted or vanished
// command are dropped with it.
func (r *Registry) Purge(l *Loaded) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.modules {
		if m == l {
			r.modules = append(r.modules[:i], r.modules[i+1:]...)
			break
		}
	}
	for name, e := range r.commands {
		if e.Module == l {
			delete(r.commands, name)
		}
	}
	for alias, target := range r.aliases {
		if _, ok := r.commands[target]; !ok {
			delete(r.aliases, alias)
		}
	}
	r.watchers = filterWatchers(r.watchers, l)
	r.rawHandlers = filterRaw(r.rawHandlers, l)
	r.messageHandlers = filterMessages(r.messageHandlers, l)
	for name, e := range r.inline {
		if e.Module == l {
			delete(r.inline, name)
		}
	}
	r.callbacks = filterCallbacks(r.callbacks, l)
}

// Lookup finds a live module by case-insensitive name.
func (r *Registry) Lookup(name string) (*Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		if strings.EqualFold(m.Name(), name) {
			return m, true
		}
	}
	return nil, false
}

// Command resolves a command token, following one alias hop, and returns its
// entry. Resolution is case-insensitive.
func (r *Registry) Command(token string) (*CommandEntry, bool) {
	token = strings.ToLower(token)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[token]; ok {
		token = target
	}
	e, ok := r.commands[token]
	return e, ok
}

// Modules returns the live modules in load order.
func (r *Registry) Modules() []*Loaded {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Loaded, len(r.modules))
	copy(out, r.modules)
	return out
}

// Watchers returns the registered watchers in registration order.
func (r *Registry) Watchers() []*WatcherEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WatcherEntry, len(r.watchers))
	copy(out, r.watchers)
	return out
}

// RawHandlers returns the registered raw update handlers.
func (r *Registry) RawHandlers() []*RawEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RawEntry, len(r.rawHandlers))
	copy(out, r.rawHandlers)
	return out
}

// MessageHandlers returns the registered bot-message handlers.
func (r *Registry) MessageHandlers() []*MessageEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MessageEntry, len(r.messageHandlers))
	copy(out, r.messageHandlers)
	return out
}

// InlineHandler finds an inline query handler by name.
func (r *Registry) InlineHandler(name string) (*InlineEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.inline[strings.ToLower(name)]
	return e, ok
}

// CallbackHandlers returns the registered callback handlers.
func (r *Registry) CallbackHandlers() []*CallbackEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CallbackEntry, len(r.callbacks))
	copy(out, r.callbacks)
	return out
}

// CommandNames returns every registered command name, sorted.
func (r *Registry) CommandNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func filterWatchers(in []*WatcherEntry, l *Loaded) []*WatcherEntry {
	out := in[:0]
	for _, e := range in {
		if e.Module != l {
			out = append(out, e)
		}
	}
	return out
}

func filterRaw(in []*RawEntry, l *Loaded) []*RawEntry {
	out := in[:0]
	for _, e := range in {
		if e.Module != l {
			out = append(out, e)
		}
	}
	return out
}

func filterMessages(in []*MessageEntry, l *Loaded) []*MessageEntry {
	out := in[:0]
	for _, e := range in {
		if e.Module != l {
			out = append(out, e)
		}
	}
	return out
}

func filterCallbacks(in []*CallbackEntry, l *Loaded) []*CallbackEntry {
	out := in[:0]
	for _, e := range in {
		if e.Module != l {
			out = append(out, e)
		}
	}
	return out
}
