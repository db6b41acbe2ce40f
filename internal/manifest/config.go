package manifest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ApplyConfig fills target, a pointer to the module's config struct, from the
// manifest schema: each field takes its stored string override when present,
// falling back to the schema default. Fields with a null default and no
// override keep the struct's zero value. Struct fields are matched by the
// `hcl` tag, or by case-insensitive name when the tag is absent.
func ApplyConfig(fields []ConfigField, overrides map[string]string, target any) error {
	for _, f := range fields {
		val := f.Default
		if raw, ok := overrides[f.Name]; ok {
			parsed, err := ParseValue(raw, f.Type)
			if err != nil {
				return fmt.Errorf("config field %q: %w", f.Name, err)
			}
			val = parsed
		}
		if val.IsNull() {
			continue
		}
		if err := setStructField(target, f.Name, val); err != nil {
			return fmt.Errorf("config field %q: %w", f.Name, err)
		}
	}
	return nil
}

// ParseValue converts a user-supplied string to a schema-typed value.
// List fields split on commas with surrounding whitespace trimmed.
func ParseValue(raw string, ty cty.Type) (cty.Value, error) {
	if ty.IsListType() {
		parts := strings.Split(raw, ",")
		elems := make([]cty.Value, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				elems = append(elems, cty.StringVal(p))
			}
		}
		if len(elems) == 0 {
			return cty.ListValEmpty(ty.ElementType()), nil
		}
		return convert.Convert(cty.ListVal(elems), ty)
	}
	return convert.Convert(cty.StringVal(raw), ty)
}

// RenderValue formats a schema-typed value for display and storage.
func RenderValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return ""
	}
	if v.Type().IsListType() {
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			parts = append(parts, RenderValue(elem))
		}
		return strings.Join(parts, ", ")
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return v.GoString()
	}
	return s.AsString()
}

// FieldValue reads the current value of a schema field back out of the
// module's config struct.
func FieldValue(target any, f ConfigField) (cty.Value, error) {
	fv, err := structField(target, f.Name)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(fv.Interface(), f.Type)
}

func setStructField(target any, name string, val cty.Value) error {
	fv, err := structField(target, name)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(val, fv.Addr().Interface())
}

func structField(target any, name string) (reflect.Value, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("config target must be a non-nil struct pointer, got %T", target)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := strings.Split(sf.Tag.Get("hcl"), ",")[0]
		if tag == name || (tag == "" && strings.EqualFold(sf.Name, name)) {
			return rv.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("no struct field for %q in %s", name, rt)
}
