package loom

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// Op names one edit a Mutation performs.
type Op string

const (
	OpTextInsert Op = "text.insert"
	OpTextDelete Op = "text.delete"
	OpListPush   Op = "list.push"
	OpListInsert Op = "list.insert"
	OpListDelete Op = "list.delete"
	OpMapSet     Op = "map.set"
	OpMapDelete  Op = "map.delete"
)

// Mutation is a serializable edit of one top-level container.
//
// Map edits address nested maps through Path, the chain of keys below Name.
// Value is materialized for list and map writes; plain Go values are plain.
// In JSON, "seed" carries a tagged seed envelope and "value" plain data.
type Mutation struct {
	Op     Op       `json:"op"`
	Name   string   `json:"name"`
	Path   []string `json:"path,omitempty"`
	Key    string   `json:"key,omitempty"`
	Index  int      `json:"index,omitempty"`
	Length int      `json:"length,omitempty"`
	Text   string   `json:"text,omitempty"`
	Value  any      `json:"-"`
}

type mutationWire struct {
	Op     Op              `json:"op"`
	Name   string          `json:"name"`
	Path   []string        `json:"path,omitempty"`
	Key    string          `json:"key,omitempty"`
	Index  int             `json:"index,omitempty"`
	Length int             `json:"length,omitempty"`
	Text   string          `json:"text,omitempty"`
	Seed   json.RawMessage `json:"seed,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func (m *Mutation) UnmarshalJSON(data []byte) error {
	var w mutationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Mutation{Op: w.Op, Name: w.Name, Path: w.Path, Key: w.Key, Index: w.Index, Length: w.Length, Text: w.Text}
	switch {
	case len(w.Seed) > 0:
		s, err := seed.UnmarshalJSON(w.Seed)
		if err != nil {
			return err
		}
		m.Value = s
	case len(w.Value) > 0:
		var v any
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return err
		}
		m.Value = seed.Plain(v)
	}
	return nil
}

func (m Mutation) MarshalJSON() ([]byte, error) {
	w := mutationWire{Op: m.Op, Name: m.Name, Path: m.Path, Key: m.Key, Index: m.Index, Length: m.Length, Text: m.Text}
	if m.Value != nil {
		raw, err := json.Marshal(seed.Of(m.Value))
		if err != nil {
			return nil, err
		}
		w.Seed = raw
	}
	return json.Marshal(w)
}

// Apply runs muts in order as one transaction. The first failing mutation
// rolls back every earlier one.
func (d *Document) Apply(muts ...Mutation) error {
	return d.Transact(func() error {
		for i, m := range muts {
			if err := d.apply(m); err != nil {
				return fmt.Errorf("mutation %d (%s): %w", i, m.Op, err)
			}
		}
		return nil
	})
}

func (d *Document) apply(m Mutation) error {
	switch m.Op {
	case OpTextInsert, OpTextDelete:
		t, err := d.GetText(m.Name)
		if err != nil {
			return err
		}
		if m.Op == OpTextInsert {
			return t.Insert(m.Index, m.Text)
		}
		return t.Delete(m.Index, m.Length)

	case OpListPush, OpListInsert, OpListDelete:
		a, err := d.GetArray(m.Name)
		if err != nil {
			return err
		}
		if m.Op == OpListDelete {
			return a.Delete(m.Index, m.Length)
		}
		index := a.Len()
		if m.Op == OpListInsert {
			index = m.Index
		}
		mat, err := d.element(m.Name, index, m.Value)
		if err != nil {
			return err
		}
		return a.Insert(index, mat)

	case OpMapSet, OpMapDelete:
		v, err := d.Map(m.Name)
		if err != nil {
			return err
		}
		for _, k := range m.Path {
			if v, err = v.Map(k); err != nil {
				return err
			}
		}
		if m.Op == OpMapSet {
			return v.Set(m.Key, m.Value)
		}
		return v.Delete(m.Key)

	default:
		return &domain.PreconditionError{Op: "apply", Path: []string{m.Name}, Err: fmt.Errorf("%w: unknown op %q", domain.ErrPrecondition, m.Op)}
	}
}

// element validates value against the element type of list name and materializes it.
func (d *Document) element(name string, index int, value any) (any, error) {
	elem := schema.Any()
	if f, ok := d.schema.Lookup(name); ok {
		if lt, ok := f.Type.(*schema.ListType); ok {
			elem = lt.Elem()
		}
	}
	s := seed.Of(value)
	key := fmt.Sprint(index)
	if err := schema.ValidateSeed(elem, s); err != nil {
		return nil, prefix([]string{name}, key, err)
	}
	mat, err := seed.Materialize(d.rt, s)
	if err != nil {
		return nil, prefix([]string{name}, key, err)
	}
	return mat, nil
}
