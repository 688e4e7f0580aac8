package seed

import (
	"fmt"
	"unicode/utf8"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// Materialize turns s into a runtime value: a detached container for container
// seeds, or the plain value itself. It dispatches on the seed's kind only and
// never recurses into plain data.
func Materialize(rt ports.Runtime, s Seed) (any, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	return materialize(rt, normalize(s), nil)
}

func materialize(rt ports.Runtime, s Seed, path []string) (any, error) {
	switch s := s.(type) {
	case TextSeed:
		return fromText(rt, s)
	case ListSeed:
		return fromList(rt, s, path)
	case MapSeed:
		return fromMap(rt, s, path)
	case PlainSeed:
		return s.Value, nil
	default:
		return nil, &domain.ShapeError{Path: path, Expected: "seed", Actual: fmt.Sprintf("%T", s)}
	}
}

// FromText allocates a detached Text and applies s to it.
func FromText(rt ports.Runtime, s TextSeed) (ports.Text, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	return fromText(rt, s)
}

// FromList allocates a detached Array and applies s to it.
func FromList(rt ports.Runtime, s ListSeed) (ports.Array, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	return fromList(rt, s, nil)
}

// FromMap allocates a detached Map and applies s to it.
func FromMap(rt ports.Runtime, s MapSeed) (ports.Map, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	return fromMap(rt, s, nil)
}

func fromText(rt ports.Runtime, s TextSeed) (ports.Text, error) {
	t := rt.NewText()
	if err := t.Insert(0, s.Text); err != nil {
		return nil, err
	}
	return t, nil
}

func fromList(rt ports.Runtime, s ListSeed, path []string) (ports.Array, error) {
	a := rt.NewArray()
	if err := applyList(rt, a, s, path); err != nil {
		return nil, err
	}
	return a, nil
}

func fromMap(rt ports.Runtime, s MapSeed, path []string) (ports.Map, error) {
	m := rt.NewMap()
	if err := applyMap(rt, m, s, path); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyText populates an empty Text with s as a single insert.
func ApplyText(t ports.Text, s TextSeed) error {
	if t.Len() != 0 {
		return notEmpty("apply text", nil)
	}
	if err := Check(s); err != nil {
		return err
	}
	return t.Insert(0, s.Text)
}

// ApplyList populates an empty Array with the materialized items of s, in order,
// as a single insert.
func ApplyList(rt ports.Runtime, a ports.Array, s ListSeed) error {
	if err := Check(s); err != nil {
		return err
	}
	return applyList(rt, a, s, nil)
}

// ApplyMap populates an empty Map with the materialized fields of s.
// Repeated keys keep their first position and their last seed.
func ApplyMap(rt ports.Runtime, m ports.Map, s MapSeed) error {
	if err := Check(s); err != nil {
		return err
	}
	return applyMap(rt, m, s, nil)
}

// Apply populates an empty container with a seed of the same kind.
func Apply(rt ports.Runtime, c ports.Container, s Seed) error {
	if err := Check(s); err != nil {
		return err
	}
	return apply(rt, c, normalize(s), nil)
}

// ApplyAt is Apply with a path prefix for error reporting.
func ApplyAt(rt ports.Runtime, c ports.Container, s Seed, path ...string) error {
	if err := Check(s); err != nil {
		return err
	}
	return apply(rt, c, normalize(s), path)
}

func apply(rt ports.Runtime, c ports.Container, s Seed, path []string) error {
	if s.Kind() == domain.KindPlain {
		return &domain.ShapeError{Path: path, Expected: "container seed", Actual: "plain seed"}
	}
	if c.Kind() != s.Kind() {
		return domain.Mismatch(path, s.Kind(), c.Kind())
	}

	switch s := s.(type) {
	case TextSeed:
		if c.Len() != 0 {
			return notEmpty("apply text", path)
		}
		return c.(ports.Text).Insert(0, s.Text)
	case ListSeed:
		return applyList(rt, c.(ports.Array), s, path)
	case MapSeed:
		return applyMap(rt, c.(ports.Map), s, path)
	}
	return nil
}

func applyList(rt ports.Runtime, a ports.Array, s ListSeed, path []string) error {
	if a.Len() != 0 {
		return notEmpty("apply list", path)
	}
	values := make([]any, len(s.Items))
	for i, it := range s.Items {
		v, err := materialize(rt, normalize(it), domain.JoinPath(path, fmt.Sprint(i)))
		if err != nil {
			return err
		}
		values[i] = v
	}
	return a.Insert(0, values...)
}

func applyMap(rt ports.Runtime, m ports.Map, s MapSeed, path []string) error {
	if m.Len() != 0 {
		return notEmpty("apply map", path)
	}
	for _, f := range s.Dedup() {
		v, err := materialize(rt, normalize(f.Seed), domain.JoinPath(path, f.Key))
		if err != nil {
			return err
		}
		if err := m.Set(f.Key, v); err != nil {
			return fmt.Errorf("set %q: %w", f.Key, err)
		}
	}
	return nil
}

func notEmpty(op string, path []string) error {
	return &domain.PreconditionError{Op: op, Path: path, Err: domain.ErrContainerNotEmpty}
}

// Check verifies that s and every nested seed is a known, non-nil variant and
// that text seeds hold valid UTF-8.
func Check(s Seed) error {
	return check(s, nil)
}

func check(s Seed, path []string) error {
	switch s := normalize(s).(type) {
	case TextSeed:
		if !utf8.ValidString(s.Text) {
			return &domain.ShapeError{Path: path, Expected: "utf-8 text", Actual: "invalid utf-8"}
		}
		return nil
	case PlainSeed:
		return nil
	case ListSeed:
		for i, it := range s.Items {
			if err := check(it, domain.JoinPath(path, fmt.Sprint(i))); err != nil {
				return err
			}
		}
		return nil
	case MapSeed:
		for _, f := range s.Fields {
			if err := check(f.Seed, domain.JoinPath(path, f.Key)); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return &domain.ShapeError{Path: path, Expected: "seed", Actual: "nil"}
	default:
		return &domain.ShapeError{Path: path, Expected: "seed", Actual: fmt.Sprintf("%T", s)}
	}
}

// ToJSON projects a materialized value to plain data. Containers are replaced
// by their recursive JSON snapshot; anything else is returned unchanged.
func ToJSON(v any) any {
	if c, ok := v.(ports.Container); ok {
		return c.ToJSON()
	}
	return v
}
