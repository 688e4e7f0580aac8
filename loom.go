package loom

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// Document is the typed root of a collaborative document. It owns the named
// top-level containers declared by its schema.
//
// The zero Document is unconstructed: every accessor returns
// domain.ErrNotConstructed. From is the only way to build a usable Document.
type Document struct {
	rt     ports.Runtime
	doc    ports.Doc
	schema schema.Record
	origin any
	logger *slog.Logger
}

type config struct {
	runtime   ports.Runtime
	schema    schema.Record
	origin    any
	logger    *slog.Logger
	hooks     domain.Hooks
	observers []func(ports.Update)
	sanitize  bool
}

// Option defines a functional option for configuring Document construction.
type Option func(*config)

// WithRuntime injects the CRDT runtime. Defaults to the in-memory runtime.
func WithRuntime(rt ports.Runtime) Option {
	return func(c *config) {
		c.runtime = rt
	}
}

// WithSchema declares the document record explicitly. Without it the record is
// inferred from the seeds, with every top-level name required.
func WithSchema(rec schema.Record) Option {
	return func(c *config) {
		c.schema = rec
	}
}

// WithOrigin sets the transaction origin reported to observers.
func WithOrigin(origin any) Option {
	return func(c *config) {
		c.origin = origin
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithObserver registers fn before construction, so it also receives the
// construction update.
func WithObserver(fn func(ports.Update)) Option {
	return func(c *config) {
		c.observers = append(c.observers, fn)
	}
}

// WithSanitizer runs seed.SanitizeDocument over the entries before construction.
func WithSanitizer() Option {
	return func(c *config) {
		c.sanitize = true
	}
}

// From builds a document from named top-level seeds in a single transaction.
func From(entries []seed.Field, opts ...Option) (*Document, error) {
	return FromContext(context.Background(), entries, opts...)
}

// FromContext is From with a context for lifecycle hooks.
//
// Every entry must be a container seed, names must be unique, and the entries
// must satisfy the schema. All of this is checked before the runtime document
// is touched. Each entry is then fetched-or-created by name and kind and
// populated in place, inside one transaction: observers see either nothing or
// the complete document.
func FromContext(ctx context.Context, entries []seed.Field, opts ...Option) (*Document, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.runtime == nil {
		cfg.runtime = memory.NewRuntime(memory.WithLogger(cfg.logger))
	}

	start := time.Now()
	d, err := build(cfg, entries)
	event := &domain.ConstructEvent{Entries: len(entries), Duration: time.Since(start), Err: err}
	if err != nil {
		cfg.logger.Warn("document construction failed", "entries", len(entries), "err", err)
		if cfg.hooks.OnConstructFailed != nil {
			cfg.hooks.OnConstructFailed(ctx, event)
		}
		return nil, err
	}

	event.DocID = d.doc.GUID()
	cfg.logger.Debug("document constructed", "doc", event.DocID, "entries", event.Entries, "duration", event.Duration)
	if cfg.hooks.OnConstructed != nil {
		cfg.hooks.OnConstructed(ctx, event)
	}
	return d, nil
}

func build(cfg *config, entries []seed.Field) (*Document, error) {
	entries, err := checkEntries(entries)
	if err != nil {
		return nil, err
	}

	if cfg.sanitize {
		clean, err := seed.SanitizeDocument(entries)
		if err != nil {
			return nil, err
		}
		entries = clean
	}

	rec := cfg.schema
	if rec == nil {
		rec = schema.InferDocument(entries)
	} else {
		if err := checkRecord(rec); err != nil {
			return nil, err
		}
		if err := schema.ValidateDocument(rec, entries); err != nil {
			return nil, err
		}
	}

	doc := cfg.runtime.NewDoc()
	for _, fn := range cfg.observers {
		doc.Observe(fn)
	}

	err = doc.Transact(cfg.origin, func() error {
		for _, e := range entries {
			c, err := ensure(doc, e.Key, e.Seed.Kind())
			if err != nil {
				return err
			}
			if err := seed.ApplyAt(cfg.runtime, c, e.Seed, e.Key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Document{
		rt:     cfg.runtime,
		doc:    doc,
		schema: rec,
		origin: cfg.origin,
		logger: cfg.logger.With("doc", doc.GUID()),
	}, nil
}

// checkEntries returns normalized copies of entries or the first violation.
func checkEntries(entries []seed.Field) ([]seed.Field, error) {
	out := make([]seed.Field, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Seed == nil {
			return nil, &domain.ShapeError{Path: []string{e.Key}, Expected: "container seed", Actual: "nil"}
		}
		s := seed.Of(e.Seed)
		if !s.Kind().IsContainer() {
			return nil, &domain.ShapeError{Path: []string{e.Key}, Expected: "container seed", Actual: s.Kind().String() + " seed"}
		}
		if err := seed.Check(s); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		if seen[e.Key] {
			return nil, &domain.PreconditionError{Op: "from", Path: []string{e.Key}, Err: domain.ErrDuplicateName}
		}
		seen[e.Key] = true
		out = append(out, seed.Field{Key: e.Key, Seed: s})
	}
	return out, nil
}

func checkRecord(rec schema.Record) error {
	for _, f := range rec {
		if f.Type == nil || !f.Type.Kind().IsContainer() {
			name := "nil"
			if f.Type != nil {
				name = f.Type.Name()
			}
			return &domain.ShapeError{Path: []string{f.Name}, Expected: "container type", Actual: name}
		}
	}
	return nil
}

// ensure fetches or creates the top-level container under name with the given kind.
func ensure(doc ports.Doc, name string, kind domain.Kind) (ports.Container, error) {
	switch kind {
	case domain.KindText:
		return doc.GetText(name)
	case domain.KindList:
		return doc.GetArray(name)
	case domain.KindMap:
		return doc.GetMap(name)
	default:
		return nil, &domain.ShapeError{Path: []string{name}, Expected: "container kind", Actual: kind.String()}
	}
}

// Constructed reports whether d was built by From.
func (d *Document) Constructed() bool {
	return d != nil && d.doc != nil
}

func (d *Document) ready() error {
	if !d.Constructed() {
		return domain.ErrNotConstructed
	}
	return nil
}

// GUID returns the runtime document identifier.
func (d *Document) GUID() (string, error) {
	if err := d.ready(); err != nil {
		return "", err
	}
	return d.doc.GUID(), nil
}

// Schema returns the document record.
func (d *Document) Schema() (schema.Record, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.schema, nil
}

// Runtime returns the runtime the document was built with.
func (d *Document) Runtime() (ports.Runtime, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.rt, nil
}

// Doc exposes the underlying runtime document.
func (d *Document) Doc() (ports.Doc, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.doc, nil
}

// Names returns the declared top-level names in schema order.
func (d *Document) Names() ([]string, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.schema.Names(), nil
}

// ToJSON projects the live state of every top-level container.
func (d *Document) ToJSON() (map[string]any, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.doc.ToJSON(), nil
}

// Snapshot returns the last committed projection. Safe for concurrent use.
func (d *Document) Snapshot() (*domain.Snapshot, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	seq, data := d.doc.Snapshot()
	return &domain.Snapshot{
		DocID:   d.doc.GUID(),
		Seq:     seq,
		Schema:  d.schema.String(),
		Data:    data,
		SavedAt: time.Now().UTC(),
	}, nil
}

// Transact runs fn as one runtime transaction using the document origin.
func (d *Document) Transact(fn func() error) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.doc.Transact(d.origin, fn)
}

// Observe registers fn for committed updates.
func (d *Document) Observe(fn func(ports.Update)) (cancel func(), err error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.doc.Observe(fn), nil
}

// Reseed rebuilds seeds from the current state. Building a new document from
// them yields a document with the same JSON projection.
func (d *Document) Reseed() ([]seed.Field, error) {
	data, err := d.ToJSON()
	if err != nil {
		return nil, err
	}
	return schema.ReseedDocument(d.schema, data)
}
