package dsl

import (
	"fmt"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// Builder manages the document declaration.
type Builder struct {
	order   []string
	entries map[string]*EntryBuilder
}

// New creates a new document builder.
func New() *Builder {
	return &Builder{
		entries: make(map[string]*EntryBuilder),
	}
}

// add registers e, replacing an earlier entry of the same name in place.
func (b *Builder) add(e *EntryBuilder) *EntryBuilder {
	if _, ok := b.entries[e.name]; !ok {
		b.order = append(b.order, e.name)
	}
	b.entries[e.name] = e
	return e
}

// Text declares a text entry seeded with content.
func (b *Builder) Text(name, content string) *EntryBuilder {
	return b.add(&EntryBuilder{name: name, typ: schema.Text(), seed: seed.Text(content)})
}

// List declares a list entry of elem seeded with items.
func (b *Builder) List(name string, elem schema.Type, items ...any) *EntryBuilder {
	return b.add(&EntryBuilder{name: name, typ: schema.List(elem), seed: seed.List(items...)})
}

// Map declares a closed map entry. Configure its keys with Field and OptionalField.
func (b *Builder) Map(name string) *EntryBuilder {
	return b.add(&EntryBuilder{name: name, fields: schema.Record{}})
}

// OpenMap declares a map entry that accepts any key, seeded with fields.
func (b *Builder) OpenMap(name string, fields ...seed.Field) *EntryBuilder {
	return b.add(&EntryBuilder{name: name, typ: schema.AnyMap(), seed: seed.Map(fields...)})
}

// Record returns the declared record in declaration order.
func (b *Builder) Record() schema.Record {
	rec := make(schema.Record, 0, len(b.order))
	for _, name := range b.order {
		f, _, _ := b.entries[name].Build()
		rec = append(rec, f)
	}
	return rec
}

// Entries returns the seeded top-level entries in declaration order.
func (b *Builder) Entries() []seed.Field {
	out := make([]seed.Field, 0, len(b.order))
	for _, name := range b.order {
		if _, s, ok := b.entries[name].Build(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Build returns the record and the entries after checking that they agree.
func (b *Builder) Build() (schema.Record, []seed.Field, error) {
	rec, entries := b.Record(), b.Entries()
	if err := schema.ValidateDocument(rec, entries); err != nil {
		return nil, nil, fmt.Errorf("invalid declaration: %w", err)
	}
	return rec, entries, nil
}

// Document builds a loom document with the declared record.
func (b *Builder) Document(opts ...loom.Option) (*loom.Document, error) {
	rec, entries, err := b.Build()
	if err != nil {
		return nil, err
	}
	return loom.From(entries, append([]loom.Option{loom.WithSchema(rec)}, opts...)...)
}

// Loader compiles the declaration into a memory.Loader holding one seed document under id.
func (b *Builder) Loader(id string) (*memory.Loader, error) {
	_, entries, err := b.Build()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromEntries(map[string][]seed.Field{id: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
