package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// Runtime implements ports.Runtime in memory.
type Runtime struct {
	logger *slog.Logger
}

// RuntimeOption configures the memory Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the logger used for observer and patch diagnostics.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRuntime creates a new in-memory runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ports.Runtime = (*Runtime)(nil)

// NewDoc creates an empty document with a fresh time-ordered GUID.
func (r *Runtime) NewDoc() ports.Doc {
	return r.newDoc(uuid.Must(uuid.NewV7()).String())
}

// NewDocWithGUID creates an empty document with the given GUID.
func (r *Runtime) NewDocWithGUID(guid string) ports.Doc {
	return r.newDoc(guid)
}

func (r *Runtime) newDoc(guid string) *Doc {
	d := &Doc{
		guid:      guid,
		logger:    r.logger.With("doc", guid),
		roots:     make(map[string]container),
		observers: make(map[int]func(ports.Update)),
	}
	d.committed.Store(&committed{data: map[string]any{}})
	return d
}

// NewText allocates a detached Text.
func (r *Runtime) NewText() ports.Text { return &Text{} }

// NewArray allocates a detached Array.
func (r *Runtime) NewArray() ports.Array { return &Array{} }

// NewMap allocates a detached Map.
func (r *Runtime) NewMap() ports.Map { return newMap() }

type committed struct {
	seq  uint64
	data map[string]any
}

// Doc implements ports.Doc.
type Doc struct {
	guid   string
	logger *slog.Logger

	// writer-owned state
	roots map[string]container
	order []string
	tx    *txn

	committed atomic.Pointer[committed]

	mu        sync.Mutex
	observers map[int]func(ports.Update)
	nextObs   int
}

var _ ports.Doc = (*Doc)(nil)

// GUID returns the document identifier.
func (d *Doc) GUID() string { return d.guid }

// GetText fetches or creates the top-level Text under name.
func (d *Doc) GetText(name string) (ports.Text, error) {
	c, err := d.root(name, domain.KindText, func() container { return &Text{} })
	if err != nil {
		return nil, err
	}
	return c.(*Text), nil
}

// GetArray fetches or creates the top-level Array under name.
func (d *Doc) GetArray(name string) (ports.Array, error) {
	c, err := d.root(name, domain.KindList, func() container { return &Array{} })
	if err != nil {
		return nil, err
	}
	return c.(*Array), nil
}

// GetMap fetches or creates the top-level Map under name.
func (d *Doc) GetMap(name string) (ports.Map, error) {
	c, err := d.root(name, domain.KindMap, func() container { return newMap() })
	if err != nil {
		return nil, err
	}
	return c.(*Map), nil
}

func (d *Doc) root(name string, kind domain.Kind, create func() container) (container, error) {
	if c, ok := d.roots[name]; ok {
		if c.Kind() != kind {
			return nil, fmt.Errorf("%w: %q is %s, requested %s", domain.ErrKindConflict, name, c.Kind(), kind)
		}
		return c, nil
	}

	c := create()
	err := d.write(name, func(tx *txn) error {
		c.base().bind(d, d, name)
		d.roots[name] = c
		d.order = append(d.order, name)
		tx.record(func() {
			delete(d.roots, name)
			d.order = d.order[:len(d.order)-1]
			c.base().unbind()
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup returns the existing top-level container under name.
func (d *Doc) Lookup(name string) (ports.Container, bool) {
	c, ok := d.roots[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// Names returns top-level names in creation order.
func (d *Doc) Names() []string {
	return slices.Clone(d.order)
}

// ToJSON projects the live state.
func (d *Doc) ToJSON() map[string]any {
	out := make(map[string]any, len(d.roots))
	for name, c := range d.roots {
		out[name] = c.ToJSON()
	}
	return out
}

// Snapshot returns the last committed sequence number and its JSON projection.
func (d *Doc) Snapshot() (uint64, map[string]any) {
	c := d.committed.Load()
	return c.seq, cloneObject(c.data)
}

// Observe registers fn for committed updates.
func (d *Doc) Observe(fn func(ports.Update)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

// Transact runs fn atomically. Nested calls join the outer transaction.
func (d *Doc) Transact(origin any, fn func() error) (err error) {
	if d.tx != nil {
		return fn()
	}

	tx := &txn{origin: origin}
	d.tx = tx
	defer func() {
		d.tx = nil
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
			return
		}
		if len(tx.changed) > 0 {
			d.publish(tx)
		}
	}()

	return fn()
}

// write applies fn inside the active transaction, opening an implicit one if needed.
func (d *Doc) write(root string, fn func(tx *txn) error) error {
	if d.tx == nil {
		return d.Transact(nil, func() error { return d.write(root, fn) })
	}
	d.tx.touch(root)
	return fn(d.tx)
}

func (d *Doc) publish(tx *txn) {
	prev := d.committed.Load()
	next := &committed{seq: prev.seq + 1, data: d.ToJSON()}
	d.committed.Store(next)

	patch, err := mergePatch(prev.data, next.data)
	if err != nil {
		d.logger.Warn("merge patch unavailable", "seq", next.seq, "err", err)
	}

	d.mu.Lock()
	fns := make([]func(ports.Update), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ports.Update{
			Seq:      next.seq,
			Origin:   tx.origin,
			Changed:  slices.Clone(tx.changed),
			Snapshot: cloneObject(next.data),
			Patch:    patch,
		})
	}
}

func mergePatch(prev, next map[string]any) ([]byte, error) {
	a, err := json.Marshal(prev)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(a, b)
}

type txn struct {
	origin  any
	undo    []func()
	changed []string
}

func (t *txn) touch(root string) {
	if root == "" || slices.Contains(t.changed, root) {
		return
	}
	t.changed = append(t.changed, root)
}

// record registers an inverse operation. A nil txn means the target is detached.
func (t *txn) record(fn func()) {
	if t == nil {
		return
	}
	t.undo = append(t.undo, fn)
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
