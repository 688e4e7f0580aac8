package memory

import (
	"fmt"
	"iter"
	"slices"
	"unicode/utf8"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

type container interface {
	ports.Container
	base() *node
	children() []container
}

// node holds the integration state shared by every container.
type node struct {
	doc     *Doc
	parent  any
	root    string
	removed bool
}

func (n *node) base() *node { return n }

func (n *node) bind(doc *Doc, parent any, root string) {
	n.doc = doc
	n.parent = parent
	n.root = root
}

func (n *node) unbind() {
	n.doc = nil
	n.parent = nil
	n.root = ""
}

// write runs fn inside the owning document's transaction. Detached and removed
// containers mutate without a transaction.
func (n *node) write(fn func(tx *txn) error) error {
	if n.doc == nil || n.removed {
		return fn(nil)
	}
	return n.doc.write(n.root, fn)
}

// prepare validates an inbound value, integrating containers and copying plain data.
// The returned undo reverts the integration.
func prepare(owner container, v any) (any, func(), error) {
	c, isContainer := v.(ports.Container)
	if !isContainer {
		return clonePlain(v), func() {}, nil
	}
	child, ok := c.(container)
	if !ok {
		return nil, nil, fmt.Errorf("%w: foreign container %T", domain.ErrShapeViolation, v)
	}
	if child == owner || child.base().parent != nil {
		return nil, nil, domain.ErrAlreadyIntegrated
	}
	ob := owner.base()
	integrate(child, ob.doc, owner, ob.root)
	markRemoved(child, ob.removed)
	return child, func() { detach(child) }, nil
}

func integrate(c container, doc *Doc, parent any, root string) {
	c.base().bind(doc, parent, root)
	for _, ch := range c.children() {
		integrate(ch, doc, c, root)
	}
}

func detach(c container) {
	c.base().unbind()
	retag(c)
}

func retag(c container) {
	for _, ch := range c.children() {
		ch.base().doc = nil
		ch.base().root = ""
		retag(ch)
	}
}

// markRemoved flags c and its whole subtree.
func markRemoved(v any, removed bool) {
	c, ok := v.(container)
	if !ok {
		return
	}
	c.base().removed = removed
	for _, ch := range c.children() {
		markRemoved(ch, removed)
	}
}

func outward(v any) any {
	if c, ok := v.(container); ok {
		return c
	}
	return clonePlain(v)
}

func toJSON(v any) any {
	if c, ok := v.(container); ok {
		return c.ToJSON()
	}
	return clonePlain(v)
}

func outOfRange(op string, index, length, size int) error {
	return fmt.Errorf("%w: %s(%d, %d) on length %d", domain.ErrIndexOutOfRange, op, index, length, size)
}

// --- Text ---

// Text implements ports.Text.
type Text struct {
	node
	runes []rune
}

var _ ports.Text = (*Text)(nil)

func (t *Text) Kind() domain.Kind     { return domain.KindText }
func (t *Text) Len() int              { return len(t.runes) }
func (t *Text) String() string        { return string(t.runes) }
func (t *Text) ToJSON() any           { return string(t.runes) }
func (t *Text) children() []container { return nil }

func (t *Text) Insert(index int, s string) error {
	if index < 0 || index > len(t.runes) {
		return outOfRange("insert", index, 0, len(t.runes))
	}
	if !utf8.ValidString(s) {
		return &domain.ShapeError{Expected: "utf-8 text", Actual: "invalid utf-8"}
	}
	ins := []rune(s)
	if len(ins) == 0 {
		return nil
	}
	return t.write(func(tx *txn) error {
		t.runes = slices.Insert(t.runes, index, ins...)
		tx.record(func() { t.runes = slices.Delete(t.runes, index, index+len(ins)) })
		return nil
	})
}

func (t *Text) Delete(index, length int) error {
	if index < 0 || length < 0 || index+length > len(t.runes) {
		return outOfRange("delete", index, length, len(t.runes))
	}
	if length == 0 {
		return nil
	}
	return t.write(func(tx *txn) error {
		removed := slices.Clone(t.runes[index : index+length])
		t.runes = slices.Delete(t.runes, index, index+length)
		tx.record(func() { t.runes = slices.Insert(t.runes, index, removed...) })
		return nil
	})
}

// --- Array ---

// Array implements ports.Array.
type Array struct {
	node
	items []any
}

var _ ports.Array = (*Array)(nil)

func (a *Array) Kind() domain.Kind { return domain.KindList }
func (a *Array) Len() int          { return len(a.items) }

func (a *Array) children() []container {
	var out []container
	for _, v := range a.items {
		if c, ok := v.(container); ok {
			out = append(out, c)
		}
	}
	return out
}

func (a *Array) Insert(index int, values ...any) error {
	if index < 0 || index > len(a.items) {
		return outOfRange("insert", index, len(values), len(a.items))
	}
	if len(values) == 0 {
		return nil
	}
	return a.write(func(tx *txn) error {
		prepared := make([]any, 0, len(values))
		var undos []func()
		for _, v := range values {
			p, undo, err := prepare(a, v)
			if err != nil {
				for i := len(undos) - 1; i >= 0; i-- {
					undos[i]()
				}
				return err
			}
			prepared = append(prepared, p)
			undos = append(undos, undo)
		}
		a.items = slices.Insert(a.items, index, prepared...)
		tx.record(func() {
			a.items = slices.Delete(a.items, index, index+len(prepared))
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
		})
		return nil
	})
}

func (a *Array) Push(values ...any) error {
	return a.Insert(len(a.items), values...)
}

func (a *Array) Delete(index, length int) error {
	if index < 0 || length < 0 || index+length > len(a.items) {
		return outOfRange("delete", index, length, len(a.items))
	}
	if length == 0 {
		return nil
	}
	return a.write(func(tx *txn) error {
		removed := slices.Clone(a.items[index : index+length])
		a.items = slices.Delete(a.items, index, index+length)
		for _, v := range removed {
			markRemoved(v, true)
		}
		tx.record(func() {
			a.items = slices.Insert(a.items, index, removed...)
			for _, v := range removed {
				markRemoved(v, false)
			}
		})
		return nil
	})
}

func (a *Array) Get(index int) (any, error) {
	if index < 0 || index >= len(a.items) {
		return nil, outOfRange("get", index, 1, len(a.items))
	}
	return outward(a.items[index]), nil
}

func (a *Array) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range a.items {
			if !yield(i, outward(v)) {
				return
			}
		}
	}
}

func (a *Array) ToArray() []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = outward(v)
	}
	return out
}

func (a *Array) ToJSON() any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = toJSON(v)
	}
	return out
}

// --- Map ---

// Map implements ports.Map. Keys iterate in insertion order.
type Map struct {
	node
	keys []string
	vals map[string]any
}

var _ ports.Map = (*Map)(nil)

func newMap() *Map {
	return &Map{vals: make(map[string]any)}
}

func (m *Map) Kind() domain.Kind { return domain.KindMap }
func (m *Map) Len() int          { return len(m.keys) }

func (m *Map) children() []container {
	var out []container
	for _, k := range m.keys {
		if c, ok := m.vals[k].(container); ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *Map) Set(key string, value any) error {
	return m.write(func(tx *txn) error {
		p, undo, err := prepare(m, value)
		if err != nil {
			return err
		}
		old, existed := m.vals[key]
		m.vals[key] = p
		if existed {
			markRemoved(old, true)
		} else {
			m.keys = append(m.keys, key)
		}
		tx.record(func() {
			undo()
			if existed {
				m.vals[key] = old
				markRemoved(old, false)
				return
			}
			delete(m.vals, key)
			m.keys = m.keys[:len(m.keys)-1]
		})
		return nil
	})
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	if !ok {
		return nil, false
	}
	return outward(v), true
}

func (m *Map) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

func (m *Map) Delete(key string) bool {
	old, ok := m.vals[key]
	if !ok {
		return false
	}
	_ = m.write(func(tx *txn) error {
		pos := slices.Index(m.keys, key)
		m.keys = slices.Delete(m.keys, pos, pos+1)
		delete(m.vals, key)
		markRemoved(old, true)
		tx.record(func() {
			m.keys = slices.Insert(m.keys, pos, key)
			m.vals[key] = old
			markRemoved(old, false)
		})
		return nil
	})
	return true
}

func (m *Map) Keys() []string {
	return slices.Clone(m.keys)
}

func (m *Map) Values() []any {
	out := make([]any, len(m.keys))
	for i, k := range m.keys {
		out[i] = outward(m.vals[k])
	}
	return out
}

func (m *Map) ForEach(fn func(key string, value any)) {
	for _, k := range slices.Clone(m.keys) {
		if v, ok := m.vals[k]; ok {
			fn(k, outward(v))
		}
	}
}

func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.keys {
			if !yield(k, outward(m.vals[k])) {
				return
			}
		}
	}
}

func (m *Map) ToJSON() any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = toJSON(m.vals[k])
	}
	return out
}
