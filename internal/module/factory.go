package module

import (
	"fmt"
	"sort"
)

// Factory constructs a fresh module instance.
type Factory func() Module

// Factories is the build-time table of compiled module implementations,
// keyed by the implementation name manifests bind to. It is populated once
// at startup by the composition root and read-only afterwards.
type Factories struct {
	byName map[string]Factory
}

// NewFactories returns an empty table.
func NewFactories() *Factories {
	return &Factories{byName: make(map[string]Factory)}
}

// Register adds a factory. Double registration is a programmer error.
func (f *Factories) Register(impl string, fn Factory) {
	if _, exists := f.byName[impl]; exists {
		panic(fmt.Sprintf("module factory %q already registered", impl))
	}
	f.byName[impl] = fn
}

// New constructs an instance of the named implementation.
func (f *Factories) New(impl string) (Module, bool) {
	fn, ok := f.byName[impl]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Names lists the registered implementation names, sorted.
func (f *Factories) Names() []string {
	names := make([]string, 0, len(f.byName))
	for name := range f.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
