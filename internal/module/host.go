package module

import "context"

// CommandInfo describes one command for listings.
type CommandInfo struct {
	Name    string
	Aliases []string
	Doc     string
}

// ConfigField describes one config schema field with its current value
// rendered as text.
type ConfigField struct {
	Name        string
	Type        string
	Description string
	Value       string
}

// Info is the read/administer surface of one loaded module, as exposed to
// management commands.
type Info interface {
	Name() string
	Origin() Origin
	Description() string
	CommandInfo() []CommandInfo

	// ConfigFields lists the module's config schema with current values;
	// empty for modules without a config block.
	ConfigFields() []ConfigField
	// ConfigValue renders one config value as text.
	ConfigValue(key string) (string, bool)
	// SetConfigValue converts raw text to the field's declared type, applies
	// it to the module's config struct, and persists it.
	SetConfigValue(key, raw string) error
}

// Host is the loader control surface handed to modules. It is the only way a
// module may mutate the set of loaded modules.
type Host interface {
	// LoadSource loads a module from an in-memory manifest blob. When save is
	// true the source is also persisted into the custom modules directory
	// under the loaded module's name. Returns the display name.
	LoadSource(ctx context.Context, src []byte, origin Origin, save bool) (string, error)
	// Unload removes a live module by name (user-initiated: core modules are
	// protected). Returns the removed display name, or "" for a no-op.
	Unload(ctx context.Context, name string) (string, error)
	// Lookup finds a live module by case-insensitive name.
	Lookup(name string) (Info, bool)
	// Modules lists live modules in load order.
	Modules() []Info
}
