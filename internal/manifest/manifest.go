// Package manifest parses module manifests. A manifest is an HCL document,
// either a file on disk or an in-memory source blob, declaring exactly one
// module: its name, the compiled implementation it binds to, a minimum host
// version, optional per-command metadata, and an optional typed config schema.
//
//	module "Manager" {
//	  impl        = "manager"
//	  min_version = "2.0.0"
//	  description = "Module and host management."
//
//	  command "restart" {
//	    aliases = ["r"]
//	    doc     = "— restart the userbot process"
//	  }
//
//	  config {
//	    field "branch" {
//	      type        = "string"
//	      default     = "main"
//	      description = "git branch tracked by .update"
//	    }
//	  }
//	}
package manifest

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/oolong-ub/oolong/internal/module"
)

// CommandSpec is manifest-declared command metadata, parity-checked against
// the implementation's Declaration at load time.
type CommandSpec struct {
	Aliases []string
	Doc     string
}

// ConfigField is one typed field of the module's config schema.
type ConfigField struct {
	Name        string
	Type        cty.Type
	Default     cty.Value
	Description string
}

// Manifest is the parsed, validated module manifest.
type Manifest struct {
	Name        string
	Impl        string
	MinVersion  string
	Description string
	Commands    map[string]CommandSpec
	Config      []ConfigField
	Filename    string
}

type rootSchema struct {
	Modules []*moduleBlock `hcl:"module,block"`
}

type moduleBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type moduleBody struct {
	Impl        string          `hcl:"impl,optional"`
	MinVersion  string          `hcl:"min_version,optional"`
	Description string          `hcl:"description,optional"`
	Commands    []*commandBlock `hcl:"command,block"`
	Config      *configBlock    `hcl:"config,block"`
}

type commandBlock struct {
	Name    string   `hcl:"name,label"`
	Aliases []string `hcl:"aliases,optional"`
	Doc     string   `hcl:"doc,optional"`
}

type configBlock struct {
	Fields []*fieldBlock `hcl:"field,block"`
}

type fieldBlock struct {
	Name        string    `hcl:"name,label"`
	Type        string    `hcl:"type"`
	Default     cty.Value `hcl:"default,optional"`
	Description string    `hcl:"description,optional"`
}

// Parse decodes and validates one manifest. A document with zero or multiple
// module blocks, an empty name, an unknown config field type, or a default
// that does not fit its declared type is rejected with a StructureError.
func Parse(filename string, src []byte) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, &module.StructureError{Reason: fmt.Sprintf("parse %s: %s", filename, diags.Error())}
	}

	var root rootSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, &module.StructureError{Reason: fmt.Sprintf("decode %s: %s", filename, diags.Error())}
	}

	switch len(root.Modules) {
	case 0:
		return nil, &module.StructureError{Reason: fmt.Sprintf("%s declares no module block", filename)}
	case 1:
	default:
		// Ambiguity is a hard reject, not first-match-wins.
		return nil, &module.StructureError{Reason: fmt.Sprintf("%s declares %d module blocks, want exactly one", filename, len(root.Modules))}
	}

	block := root.Modules[0]
	if strings.TrimSpace(block.Name) == "" {
		return nil, &module.StructureError{Reason: fmt.Sprintf("%s declares a module with an empty name", filename)}
	}

	var body moduleBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, &module.StructureError{Reason: fmt.Sprintf("decode module %q: %s", block.Name, diags.Error())}
	}

	m := &Manifest{
		Name:        block.Name,
		Impl:        body.Impl,
		MinVersion:  body.MinVersion,
		Description: body.Description,
		Commands:    make(map[string]CommandSpec, len(body.Commands)),
		Filename:    filename,
	}
	if m.Impl == "" {
		m.Impl = strings.ToLower(m.Name)
	}

	for _, c := range body.Commands {
		name := strings.ToLower(c.Name)
		if _, dup := m.Commands[name]; dup {
			return nil, &module.StructureError{Reason: fmt.Sprintf("module %q declares command %q twice", m.Name, name)}
		}
		m.Commands[name] = CommandSpec{Aliases: c.Aliases, Doc: c.Doc}
	}

	if body.Config != nil {
		seen := make(map[string]bool, len(body.Config.Fields))
		for _, f := range body.Config.Fields {
			if seen[f.Name] {
				return nil, &module.StructureError{Reason: fmt.Sprintf("module %q declares config field %q twice", m.Name, f.Name)}
			}
			seen[f.Name] = true

			ty, err := typeForKeyword(f.Type)
			if err != nil {
				return nil, &module.StructureError{Reason: fmt.Sprintf("module %q config field %q: %v", m.Name, f.Name, err)}
			}

			def := f.Default
			if def != cty.NilVal && !def.IsNull() {
				converted, err := convert.Convert(def, ty)
				if err != nil {
					return nil, &module.StructureError{Reason: fmt.Sprintf("module %q config field %q: default does not fit type %s: %v", m.Name, f.Name, f.Type, err)}
				}
				def = converted
			} else {
				def = cty.NullVal(ty)
			}

			m.Config = append(m.Config, ConfigField{
				Name:        f.Name,
				Type:        ty,
				Default:     def,
				Description: f.Description,
			})
		}
	}

	return m, nil
}

// Field returns the config schema field with the given name.
func (m *Manifest) Field(name string) (ConfigField, bool) {
	for _, f := range m.Config {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// typeForKeyword maps the manifest's type keywords onto cty types.
func typeForKeyword(keyword string) (cty.Type, error) {
	switch strings.TrimSpace(keyword) {
	case "string":
		return cty.String, nil
	case "number":
		return cty.Number, nil
	case "bool":
		return cty.Bool, nil
	case "list(string)":
		return cty.List(cty.String), nil
	default:
		return cty.NilType, fmt.Errorf("unknown type keyword %q", keyword)
	}
}

// TypeKeyword renders a cty type back to the manifest keyword.
func TypeKeyword(ty cty.Type) string {
	switch {
	case ty == cty.String:
		return "string"
	case ty == cty.Number:
		return "number"
	case ty == cty.Bool:
		return "bool"
	case ty.IsListType() && ty.ElementType() == cty.String:
		return "list(string)"
	default:
		return ty.FriendlyName()
	}
}
