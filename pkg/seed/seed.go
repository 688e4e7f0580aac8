package seed

import (
	"maps"
	"slices"

	"github.com/aretw0/loom/pkg/domain"
)

// Seed is the sealed union of TextSeed, ListSeed, MapSeed and PlainSeed.
type Seed interface {
	Kind() domain.Kind
	isSeed()
}

// TextSeed describes a Text container holding Text.
type TextSeed struct {
	Text string
}

// ListSeed describes a List container holding Items in order.
type ListSeed struct {
	Items []Seed
}

// MapSeed describes a Map container. When a key repeats, the last field wins.
type MapSeed struct {
	Fields []Field
}

// PlainSeed carries plain data that is copied, never diffed.
// Value is opaque: nested arrays and objects are not inspected for seeds.
type PlainSeed struct {
	Value any
}

// Field is one named entry of a MapSeed or of a document.
type Field struct {
	Key  string
	Seed Seed
}

func (TextSeed) Kind() domain.Kind  { return domain.KindText }
func (ListSeed) Kind() domain.Kind  { return domain.KindList }
func (MapSeed) Kind() domain.Kind   { return domain.KindMap }
func (PlainSeed) Kind() domain.Kind { return domain.KindPlain }

func (TextSeed) isSeed()  {}
func (ListSeed) isSeed()  {}
func (MapSeed) isSeed()   {}
func (PlainSeed) isSeed() {}

// Text returns a TextSeed for s.
func Text(s string) TextSeed {
	return TextSeed{Text: s}
}

// List returns a ListSeed. Items that are not seeds become PlainSeeds.
func List(items ...any) ListSeed {
	out := make([]Seed, len(items))
	for i, it := range items {
		out[i] = Of(it)
	}
	return ListSeed{Items: out}
}

// ListOf returns a ListSeed whose items all share one static type.
func ListOf[T any](items ...T) ListSeed {
	out := make([]Seed, len(items))
	for i, it := range items {
		out[i] = Of(it)
	}
	return ListSeed{Items: out}
}

// Map returns a MapSeed with fields in the given order.
func Map(fields ...Field) MapSeed {
	return MapSeed{Fields: slices.Clone(fields)}
}

// MapOf returns a MapSeed from a Go map, with keys in lexical order.
// Values that are not seeds become PlainSeeds.
func MapOf(m map[string]any) MapSeed {
	keys := slices.Sorted(maps.Keys(m))
	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = F(k, m[k])
	}
	return MapSeed{Fields: fields}
}

// F returns a Field. Values that are not seeds become PlainSeeds.
func F(key string, v any) Field {
	return Field{Key: key, Seed: Of(v)}
}

// Plain wraps v as a PlainSeed.
func Plain(v any) PlainSeed {
	return PlainSeed{Value: v}
}

// Of returns v itself when it is a seed, and a PlainSeed otherwise.
// Only the dynamic type is consulted; the contents of maps are never inspected.
func Of(v any) Seed {
	if s, ok := v.(Seed); ok {
		return normalize(s)
	}
	return PlainSeed{Value: v}
}

// normalize turns pointer variants into value variants.
func normalize(s Seed) Seed {
	switch p := s.(type) {
	case *TextSeed:
		if p != nil {
			return *p
		}
	case *ListSeed:
		if p != nil {
			return *p
		}
	case *MapSeed:
		if p != nil {
			return *p
		}
	case *PlainSeed:
		if p != nil {
			return *p
		}
	default:
		return s
	}
	return nil
}

// Dedup returns the fields with one entry per key: keys keep the position of
// their first occurrence and take the seed of their last.
func (m MapSeed) Dedup() []Field {
	index := make(map[string]int, len(m.Fields))
	out := make([]Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if i, ok := index[f.Key]; ok {
			out[i].Seed = f.Seed
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	return out
}

// Strip returns the plain-data projection of s: the JSON value that
// materializing s and projecting it back is expected to produce.
func Strip(s Seed) any {
	switch s := normalize(s).(type) {
	case TextSeed:
		return s.Text
	case ListSeed:
		out := make([]any, len(s.Items))
		for i, it := range s.Items {
			out[i] = Strip(it)
		}
		return out
	case MapSeed:
		out := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			out[f.Key] = Strip(f.Seed)
		}
		return out
	case PlainSeed:
		return s.Value
	default:
		return nil
	}
}

// StripDocument is Strip for a list of top-level entries.
func StripDocument(entries []Field) map[string]any {
	return Strip(MapSeed{Fields: entries}).(map[string]any)
}
