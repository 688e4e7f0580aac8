package loom

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// Get returns the top-level container declared under name. It reports false
// when the schema does not declare name or the document is unconstructed.
// Optional names that were not seeded are created empty on first access.
func (d *Document) Get(name string) (ports.Container, bool) {
	if !d.Constructed() {
		return nil, false
	}
	f, ok := d.schema.Lookup(name)
	if !ok {
		return nil, false
	}
	c, err := ensure(d.doc, name, f.Type.Kind())
	if err != nil {
		d.logger.Error("top-level container unavailable", "name", name, "err", err)
		return nil, false
	}
	return c, true
}

// GetAs returns the top-level container under name narrowed to T. The kind T
// stands for must match the kind the schema declares for name.
func GetAs[T ports.Container](d *Document, name string) (T, error) {
	var zero T
	if err := d.ready(); err != nil {
		return zero, err
	}
	f, ok := d.schema.Lookup(name)
	if !ok {
		return zero, unknownName(name)
	}
	if want := witness[T](); want != domain.KindPlain && want != f.Type.Kind() {
		return zero, domain.Mismatch([]string{name}, want, f.Type.Kind())
	}
	c, err := ensure(d.doc, name, f.Type.Kind())
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, &domain.ShapeError{
			Path:     []string{name},
			Expected: fmt.Sprintf("%T", zero),
			Actual:   fmt.Sprintf("%T", c),
			Err:      domain.ErrKindMismatch,
		}
	}
	return v, nil
}

// witness maps the port interfaces to their kind. Concrete runtime types
// report KindPlain and are checked by assertion instead.
func witness[T ports.Container]() domain.Kind {
	switch any((*T)(nil)).(type) {
	case *ports.Text:
		return domain.KindText
	case *ports.Array:
		return domain.KindList
	case *ports.Map:
		return domain.KindMap
	}
	return domain.KindPlain
}

// GetText returns the top-level Text under name. Only names whose declared
// type is assignable to text are accepted.
func (d *Document) GetText(name string) (ports.Text, error) {
	if err := d.restrict(name, schema.Text()); err != nil {
		return nil, err
	}
	return GetAs[ports.Text](d, name)
}

// GetArray returns the top-level Array under name.
func (d *Document) GetArray(name string) (ports.Array, error) {
	if err := d.restrict(name, schema.AnyList()); err != nil {
		return nil, err
	}
	return GetAs[ports.Array](d, name)
}

// GetMap returns the top-level Map under name.
func (d *Document) GetMap(name string) (ports.Map, error) {
	if err := d.restrict(name, schema.AnyMap()); err != nil {
		return nil, err
	}
	return GetAs[ports.Map](d, name)
}

func (d *Document) restrict(name string, target schema.Type) error {
	if err := d.ready(); err != nil {
		return err
	}
	if slices.Contains(schema.ExtendsKeyof(d.schema, target), name) {
		return nil
	}
	f, ok := d.schema.Lookup(name)
	if !ok {
		return unknownName(name)
	}
	return domain.Mismatch([]string{name}, target.Kind(), f.Type.Kind())
}

func unknownName(name string) error {
	return &domain.ShapeError{
		Path:     []string{name},
		Expected: "declared name",
		Actual:   "undeclared",
		Err:      domain.ErrUnknownName,
	}
}

// Map returns a schema-checked view of the top-level Map under name.
func (d *Document) Map(name string) (*MapView, error) {
	m, err := d.GetMap(name)
	if err != nil {
		return nil, err
	}
	f, _ := d.schema.Lookup(name)
	mt, ok := f.Type.(*schema.MapType)
	if !ok {
		mt = schema.AnyMap().(*schema.MapType)
	}
	return &MapView{rt: d.rt, m: m, typ: mt, path: []string{name}}, nil
}

// Decode projects the current state into out using mapstructure and the
// "json" struct tags.
func (d *Document) Decode(out any) error {
	data, err := d.ToJSON()
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

// MapView enforces a map type's field table over a runtime Map.
// Closed maps accept only declared keys and only optional keys can be deleted.
// Open maps accept anything.
type MapView struct {
	rt   ports.Runtime
	m    ports.Map
	typ  *schema.MapType
	path []string
}

// Raw returns the underlying runtime Map.
func (v *MapView) Raw() ports.Map { return v.m }

// Type returns the map type enforced by the view.
func (v *MapView) Type() *schema.MapType { return v.typ }

func (v *MapView) field(key string) (schema.Field, error) {
	if v.typ.Open() {
		return schema.Optional(key, schema.Any()), nil
	}
	f, ok := v.typ.Fields().Lookup(key)
	if !ok {
		return schema.Field{}, &domain.ShapeError{
			Path:     domain.JoinPath(v.path, key),
			Expected: "declared key",
			Actual:   "undeclared",
			Err:      domain.ErrUnknownName,
		}
	}
	return f, nil
}

// Get returns the value under key: a container or a copy of plain data.
func (v *MapView) Get(key string) (any, bool) {
	return v.m.Get(key)
}

// Has reports whether key is present.
func (v *MapView) Has(key string) bool {
	return v.m.Has(key)
}

// Keys returns the present keys in insertion order.
func (v *MapView) Keys() []string {
	return v.m.Keys()
}

// Values returns the present values in key order.
func (v *MapView) Values() []any {
	return v.m.Values()
}

// All iterates over the present entries in insertion order.
func (v *MapView) All() iter.Seq2[string, any] {
	return v.m.All()
}

// ForEach calls fn for every present entry. fn may mutate the map.
func (v *MapView) ForEach(fn func(key string, value any)) {
	v.m.ForEach(fn)
}

// ToJSON returns the map's JSON projection.
func (v *MapView) ToJSON() map[string]any {
	out, _ := v.m.ToJSON().(map[string]any)
	return out
}

// Set materializes value under key. Values that are not seeds are plain.
// The resulting seed must satisfy the declared field type.
func (v *MapView) Set(key string, value any) error {
	f, err := v.field(key)
	if err != nil {
		return err
	}
	s := seed.Of(value)
	if err := schema.ValidateSeed(f.Type, s); err != nil {
		return prefix(v.path, key, err)
	}
	mat, err := seed.Materialize(v.rt, s)
	if err != nil {
		return prefix(v.path, key, err)
	}
	return v.m.Set(key, mat)
}

// Delete removes key. Keys declared as required cannot be deleted.
// Deleting an absent optional key is a no-op.
func (v *MapView) Delete(key string) error {
	f, err := v.field(key)
	if err != nil {
		return err
	}
	if !f.Optional {
		return &domain.PreconditionError{Op: "delete", Path: domain.JoinPath(v.path, key), Err: domain.ErrRequiredKey}
	}
	v.m.Delete(key)
	return nil
}

// Map returns a view of the nested map under key.
func (v *MapView) Map(key string) (*MapView, error) {
	f, err := v.field(key)
	if err != nil {
		return nil, err
	}
	raw, ok := v.m.Get(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, errMissing)
	}
	m, ok := raw.(ports.Map)
	if !ok {
		return nil, domain.Mismatch(domain.JoinPath(v.path, key), domain.KindMap, kindOf(raw))
	}
	mt, ok := f.Type.(*schema.MapType)
	if !ok {
		mt = schema.AnyMap().(*schema.MapType)
	}
	return &MapView{rt: v.rt, m: m, typ: mt, path: domain.JoinPath(v.path, key)}, nil
}

var errMissing = errors.New("key not present")

func prefix(path []string, key string, err error) error {
	var se *domain.ShapeError
	if errors.As(err, &se) {
		full := domain.JoinPath(path, key)
		return &domain.ShapeError{Path: append(full, se.Path...), Expected: se.Expected, Actual: se.Actual, Err: se.Err}
	}
	return fmt.Errorf("%s: %w", key, err)
}

func kindOf(v any) domain.Kind {
	if c, ok := v.(ports.Container); ok {
		return c.Kind()
	}
	return domain.KindPlain
}

// Elements narrows every element of a to T. Elements that are not a T fail
// with a ShapeError naming their index.
func Elements[T any](a ports.Array) ([]T, error) {
	out := make([]T, 0, a.Len())
	for i, v := range a.All() {
		t, ok := v.(T)
		if !ok {
			var zero T
			return nil, &domain.ShapeError{
				Path:     []string{fmt.Sprint(i)},
				Expected: fmt.Sprintf("%T", zero),
				Actual:   fmt.Sprintf("%T", v),
			}
		}
		out = append(out, t)
	}
	return out, nil
}
