// Package module defines the plugin boundary: the contract a compiled module
// implementation fulfils, the declarative registration list it hands the
// loader, and the collaborator handles injected at load time.
//
// A module ships in two parts. The behavior is a Go type registered in a
// Factories table at build time under an implementation key. The identity is
// an HCL manifest (a file on disk or an in-memory source blob) naming that
// key together with the module name, minimum host version, and config schema.
// The loader validates the manifest, constructs the implementation, and merges
// its Declaration into the registry.
package module

import (
	"context"
	"log/slog"

	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
)

// Origin tags where a module's manifest came from.
type Origin string

const (
	// OriginCore marks built-in modules, protected from user-initiated unload.
	OriginCore Origin = "core"
	// OriginCustom marks modules loaded from the custom modules directory.
	OriginCustom Origin = "custom"
	// OriginString marks modules loaded from an in-memory source blob.
	OriginString Origin = "string"
)

// Module is the unit of extension. Declare returns the module's handler
// tables; it must be cheap and side-effect free, and is called once at
// registration time.
type Module interface {
	Declare() Declaration
}

// Binder is implemented by modules that want the shared collaborators.
// Bind runs before Declare and before OnLoad.
type Binder interface {
	Bind(b Binding)
}

// Configurable is implemented by modules with persisted settings. Config
// returns a pointer to a struct whose exported fields match the manifest's
// config schema; the loader populates it from defaults and stored overrides.
type Configurable interface {
	Config() any
}

// LoadHook runs once after the module's registrations are live.
type LoadHook interface {
	OnLoad(ctx context.Context) error
}

// UnloadHook runs once after the module left the live list, before its
// registry entries are purged.
type UnloadHook interface {
	OnUnload(ctx context.Context) error
}

// Binding carries the shared collaborators a module may use.
type Binding struct {
	Client telegram.Client
	Store  *storage.Store
	Inline InlineSender
	Host   Host
	Log    *slog.Logger
}

// Base is a convenience embedding that stores the Binding and exposes it to
// the module's methods. Embedding Base satisfies Binder.
type Base struct {
	binding Binding
}

// Bind implements Binder.
func (b *Base) Bind(bind Binding) { b.binding = bind }

// Client returns the userbot client handle.
func (b *Base) Client() telegram.Client { return b.binding.Client }

// Store returns the shared key-value store.
func (b *Base) Store() *storage.Store { return b.binding.Store }

// Inline returns the inline sub-dispatcher handle.
func (b *Base) Inline() InlineSender { return b.binding.Inline }

// Host returns the loader control surface.
func (b *Base) Host() Host { return b.binding.Host }

// Log returns the module-scoped logger.
func (b *Base) Log() *slog.Logger {
	if b.binding.Log == nil {
		return slog.Default()
	}
	return b.binding.Log
}
