package dsl

import (
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// EntryBuilder provides a fluent API for configuring a top-level entry.
type EntryBuilder struct {
	name     string
	typ      schema.Type
	seed     seed.Seed
	fields   schema.Record // declared map fields, nil unless a map entry
	values   []seed.Field  // seeded map fields
	optional bool
	deferred bool
}

// Optional marks the entry as optional in the record. It is still seeded.
func (e *EntryBuilder) Optional() *EntryBuilder {
	e.optional = true
	return e
}

// Deferred marks the entry optional and unseeded. The container is created
// empty on first access.
func (e *EntryBuilder) Deferred() *EntryBuilder {
	e.optional = true
	e.deferred = true
	return e
}

// Field declares a required key of a map entry and seeds it with value.
// value may be a seed; anything else is plain.
func (e *EntryBuilder) Field(key string, t schema.Type, value any) *EntryBuilder {
	return e.field(schema.Required(key, t), value, true)
}

// OptionalField declares an optional key. A nil value leaves it absent.
func (e *EntryBuilder) OptionalField(key string, t schema.Type, value any) *EntryBuilder {
	return e.field(schema.Optional(key, t), value, value != nil)
}

func (e *EntryBuilder) field(f schema.Field, value any, seeded bool) *EntryBuilder {
	if e.fields == nil {
		e.fields = schema.Record{}
	}
	e.fields = replaceField(e.fields, f)
	if seeded {
		e.values = replaceValue(e.values, seed.Field{Key: f.Name, Seed: seed.Of(value)})
	}
	return e
}

// Build returns the record field and the seed entry. ok is false for
// deferred entries, which have no seed.
func (e *EntryBuilder) Build() (f schema.Field, s seed.Field, ok bool) {
	t := e.typ
	sd := e.seed
	if e.fields != nil {
		t = schema.Map(e.fields...)
		sd = seed.MapSeed{Fields: e.values}
	}
	f = schema.Field{Name: e.name, Type: t, Optional: e.optional}
	if e.deferred {
		return f, seed.Field{}, false
	}
	return f, seed.Field{Key: e.name, Seed: sd}, true
}

func replaceField(r schema.Record, f schema.Field) schema.Record {
	for i := range r {
		if r[i].Name == f.Name {
			r[i] = f
			return r
		}
	}
	return append(r, f)
}

func replaceValue(fields []seed.Field, f seed.Field) []seed.Field {
	for i := range fields {
		if fields[i].Key == f.Key {
			fields[i] = f
			return fields
		}
	}
	return append(fields, f)
}
