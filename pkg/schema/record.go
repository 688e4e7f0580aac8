package schema

import (
	"slices"
	"sort"
	"strings"
)

// Field is one named entry of a Record.
type Field struct {
	Name     string
	Type     Type
	Optional bool
}

// Required declares a field that must be present.
func Required(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Optional declares a field that may be absent and may be deleted.
func Optional(name string, t Type) Field {
	return Field{Name: name, Type: t, Optional: true}
}

// Record is an ordered table of named fields.
type Record []Field

// Lookup returns the field declared under name.
func (r Record) Lookup(name string) (Field, bool) {
	for _, f := range r {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns field names in declaration order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// String renders the record as "{a:T,b?:T}", the form read by ParseRecord.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		if f.Optional {
			b.WriteByte('?')
		}
		b.WriteByte(':')
		b.WriteString(f.Type.Name())
	}
	b.WriteByte('}')
	return b.String()
}

// ExtendsOf returns the fields whose type is assignable to target.
func ExtendsOf(r Record, target Type) Record {
	var out Record
	for _, f := range r {
		if Assignable(f.Type, target) {
			out = append(out, f)
		}
	}
	return out
}

// ExtendsKeyof returns the names of the fields whose type is assignable to target.
func ExtendsKeyof(r Record, target Type) []string {
	return ExtendsOf(r, target).Names()
}

// OptionalOf returns the optional fields.
func OptionalOf(r Record) Record {
	var out Record
	for _, f := range r {
		if f.Optional {
			out = append(out, f)
		}
	}
	return out
}

// OptionalKeyof returns the names of the optional fields. Only these keys may
// be deleted from a value of the record's type.
func OptionalKeyof(r Record) []string {
	return OptionalOf(r).Names()
}

// Overwrite returns r with the fields of o replacing same-named fields of r
// in place; new fields from o are appended.
func Overwrite(r, o Record) Record {
	out := slices.Clone(r)
	for _, f := range o {
		if i := slices.IndexFunc(out, func(e Field) bool { return e.Name == f.Name }); i >= 0 {
			out[i] = f
			continue
		}
		out = append(out, f)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
