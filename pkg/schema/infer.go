package schema

import (
	"fmt"
	"reflect"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/seed"
)

// Infer derives the narrowest type describing s. Every map field is required.
func Infer(s seed.Seed) Type {
	switch s := seed.Of(s).(type) {
	case seed.TextSeed:
		return Text()
	case seed.ListSeed:
		types := make([]Type, len(s.Items))
		for i, it := range s.Items {
			types[i] = Infer(it)
		}
		return List(common(types))
	case seed.MapSeed:
		return &MapType{fields: inferFields(s.Dedup())}
	case seed.PlainSeed:
		return inferPlain(s.Value)
	default:
		return Any()
	}
}

// InferDocument derives a document record from top-level entries.
func InferDocument(entries []seed.Field) Record {
	return inferFields(seed.MapSeed{Fields: entries}.Dedup())
}

func inferFields(fields []seed.Field) Record {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = Required(f.Key, Infer(f.Seed))
	}
	return rec
}

func inferPlain(v any) Type {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool()
	case string:
		return String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int()
	case float32, float64:
		return Float()
	case []any:
		types := make([]Type, len(t))
		for i, e := range t {
			types[i] = inferPlain(e)
		}
		return Slice(common(types))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		types := make([]Type, rv.Len())
		for i := range types {
			types[i] = inferPlain(rv.Index(i).Interface())
		}
		return Slice(common(types))
	}
	return Any()
}

// common returns the shared type of ts, widening int to float, or Any.
func common(ts []Type) Type {
	if len(ts) == 0 {
		return Any()
	}
	first := ts[0]
	same := true
	for _, t := range ts[1:] {
		if t.Name() != first.Name() {
			same = false
			break
		}
	}
	if same {
		return first
	}
	for _, t := range ts {
		if !Assignable(t, Float()) {
			return Any()
		}
	}
	return Float()
}

// Reseed rebuilds a seed from plain data using t to recover container kinds.
// It is the inverse of materializing a seed and projecting it to JSON.
func Reseed(t Type, v any) (seed.Seed, error) {
	return reseed(t, v, nil)
}

// ReseedDocument rebuilds top-level entries, in record order, from a JSON snapshot.
func ReseedDocument(r Record, data map[string]any) ([]seed.Field, error) {
	return reseedFields(r, data, nil)
}

func reseed(t Type, v any, path []string) (seed.Seed, error) {
	switch tt := t.(type) {
	case *AnyType:
		return seed.Plain(v), nil
	case *TextType:
		s, ok := v.(string)
		if !ok {
			return nil, &domain.ShapeError{Path: path, Expected: "text", Actual: fmt.Sprintf("%T", v)}
		}
		return seed.Text(s), nil
	case *ListType:
		items, ok := v.([]any)
		if !ok {
			return nil, &domain.ShapeError{Path: path, Expected: tt.Name(), Actual: fmt.Sprintf("%T", v)}
		}
		out := make([]seed.Seed, len(items))
		for i, it := range items {
			s, err := reseed(tt.elemType, it, domain.JoinPath(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return seed.ListSeed{Items: out}, nil
	case *MapType:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, &domain.ShapeError{Path: path, Expected: tt.Name(), Actual: fmt.Sprintf("%T", v)}
		}
		if tt.Open() {
			fields := make([]seed.Field, 0, len(obj))
			for _, k := range sortedKeys(obj) {
				fields = append(fields, seed.Field{Key: k, Seed: seed.Plain(obj[k])})
			}
			return seed.MapSeed{Fields: fields}, nil
		}
		fields, err := reseedFields(tt.fields, obj, path)
		if err != nil {
			return nil, err
		}
		return seed.MapSeed{Fields: fields}, nil
	default:
		if err := t.Validate(v); err != nil {
			return nil, &domain.ShapeError{Path: path, Expected: t.Name(), Actual: err.Error()}
		}
		return seed.Plain(v), nil
	}
}

func reseedFields(r Record, obj map[string]any, path []string) ([]seed.Field, error) {
	fields := make([]seed.Field, 0, len(r))
	for _, f := range r {
		v, ok := obj[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return nil, &domain.ShapeError{Path: domain.JoinPath(path, f.Name), Expected: "required field", Actual: "missing"}
		}
		s, err := reseed(f.Type, v, domain.JoinPath(path, f.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, seed.Field{Key: f.Name, Seed: s})
	}
	for _, k := range sortedKeys(obj) {
		if _, declared := r.Lookup(k); !declared {
			return nil, &domain.ShapeError{Path: domain.JoinPath(path, k), Expected: "declared field", Actual: "unknown key"}
		}
	}
	return fields, nil
}
