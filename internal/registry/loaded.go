package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oolong-ub/oolong/internal/manifest"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/storage"
)

// Loaded is one live module: its manifest, its instance, and the declaration
// snapshot taken at load time. The dispatch tables reference a Loaded by
// pointer, so purging by identity is exact even across a reload of the same
// module name.
type Loaded struct {
	Manifest *manifest.Manifest
	Instance module.Module
	Decl     module.Declaration

	origin module.Origin
	source string
	store  *storage.Store
}

// NewLoaded binds a parsed manifest to its instance. source is the raw
// manifest text for string-origin modules, kept so they can be persisted
// and restored across restarts.
func NewLoaded(m *manifest.Manifest, inst module.Module, decl module.Declaration, origin module.Origin, source string, store *storage.Store) *Loaded {
	return &Loaded{
		Manifest: m,
		Instance: inst,
		Decl:     decl,
		origin:   origin,
		source:   source,
		store:    store,
	}
}

var _ module.Info = (*Loaded)(nil)

func (l *Loaded) Name() string          { return l.Manifest.Name }
func (l *Loaded) Origin() module.Origin { return l.origin }
func (l *Loaded) Description() string   { return l.Manifest.Description }

// Source returns the raw manifest text for string-origin modules.
func (l *Loaded) Source() string { return l.source }

// CommandInfo lists the module's commands with manifest metadata, sorted by
// name.
func (l *Loaded) CommandInfo() []module.CommandInfo {
	infos := make([]module.CommandInfo, 0, len(l.Decl.Commands))
	for _, c := range l.Decl.Commands {
		spec := l.Manifest.Commands[strings.ToLower(c.Name)]
		doc := spec.Doc
		if doc == "" {
			doc = c.Doc
		}
		infos = append(infos, module.CommandInfo{
			Name:    strings.ToLower(c.Name),
			Aliases: spec.Aliases,
			Doc:     doc,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ConfigFields describes the module's config schema with current values.
func (l *Loaded) ConfigFields() []module.ConfigField {
	fields := make([]module.ConfigField, 0, len(l.Manifest.Config))
	for _, f := range l.Manifest.Config {
		cf := module.ConfigField{
			Name:        f.Name,
			Type:        manifest.TypeKeyword(f.Type),
			Description: f.Description,
		}
		if v, ok := l.ConfigValue(f.Name); ok {
			cf.Value = v
		}
		fields = append(fields, cf)
	}
	return fields
}

// ConfigValue renders the current value of one config field.
func (l *Loaded) ConfigValue(key string) (string, bool) {
	f, ok := l.Manifest.Field(key)
	if !ok {
		return "", false
	}
	cfg, ok := l.Instance.(module.Configurable)
	if !ok {
		return manifest.RenderValue(f.Default), true
	}
	v, err := manifest.FieldValue(cfg.Config(), f)
	if err != nil {
		return "", false
	}
	return manifest.RenderValue(v), true
}

// SetConfigValue parses raw against the field's declared type, updates the
// live config struct, and persists the override so it survives restarts.
func (l *Loaded) SetConfigValue(key, raw string) error {
	f, ok := l.Manifest.Field(key)
	if !ok {
		return fmt.Errorf("module %s has no config field %q", l.Name(), key)
	}
	cfg, ok := l.Instance.(module.Configurable)
	if !ok {
		return fmt.Errorf("module %s does not accept config", l.Name())
	}
	if err := manifest.ApplyConfig([]manifest.ConfigField{f}, map[string]string{key: raw}, cfg.Config()); err != nil {
		return err
	}
	if l.store == nil {
		return nil
	}
	overrides := make(map[string]string)
	if _, err := l.store.Get(l.Manifest.Impl, "config", &overrides); err != nil {
		return err
	}
	overrides[key] = raw
	return l.store.Set(l.Manifest.Impl, "config", overrides)
}
