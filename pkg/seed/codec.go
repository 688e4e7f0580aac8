package seed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/loom/pkg/domain"
)

// envelope is the wire form of every seed variant.
type envelope struct {
	Kind   string            `json:"kind"`
	Text   *string           `json:"text,omitempty"`
	Items  []json.RawMessage `json:"items,omitempty"`
	Fields []json.RawMessage `json:"fields,omitempty"`
	Value  json.RawMessage   `json:"value,omitempty"`
}

type fieldWire struct {
	Key  string          `json:"key"`
	Seed json.RawMessage `json:"seed"`
}

type entryWire struct {
	Name string          `json:"name"`
	Seed json.RawMessage `json:"seed"`
}

type documentWire struct {
	Entries []entryWire `json:"entries"`
}

func (s TextSeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind domain.Kind `json:"kind"`
		Text string      `json:"text"`
	}{domain.KindText, s.Text})
}

func (s ListSeed) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []Seed{}
	}
	return json.Marshal(struct {
		Kind  domain.Kind `json:"kind"`
		Items []Seed      `json:"items"`
	}{domain.KindList, items})
}

func (s MapSeed) MarshalJSON() ([]byte, error) {
	fields := s.Fields
	if fields == nil {
		fields = []Field{}
	}
	return json.Marshal(struct {
		Kind   domain.Kind `json:"kind"`
		Fields []Field     `json:"fields"`
	}{domain.KindMap, fields})
}

func (s PlainSeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  domain.Kind `json:"kind"`
		Value any         `json:"value"`
	}{domain.KindPlain, s.Value})
}

func (f Field) MarshalJSON() ([]byte, error) {
	if f.Seed == nil {
		return nil, &domain.ShapeError{Path: []string{f.Key}, Expected: "seed", Actual: "nil"}
	}
	return json.Marshal(struct {
		Key  string `json:"key"`
		Seed Seed   `json:"seed"`
	}{f.Key, f.Seed})
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var w fieldWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s, err := decodeEnvelope(w.Seed, []string{w.Key})
	if err != nil {
		return err
	}
	*f = Field{Key: w.Key, Seed: s}
	return nil
}

// UnmarshalJSON decodes a single seed envelope.
func UnmarshalJSON(data []byte) (Seed, error) {
	return decodeEnvelope(data, nil)
}

func decodeEnvelope(data []byte, path []string) (Seed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.ShapeError{Path: path, Expected: "seed envelope", Actual: "nothing"}
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode seed at %v: %w", path, err)
	}

	if env.Kind == "" {
		return nil, &domain.ShapeError{Path: path, Expected: "seed envelope with \"kind\"", Actual: "object without kind"}
	}
	kind, err := domain.ParseKind(env.Kind)
	if err != nil {
		return nil, &domain.ShapeError{Path: path, Expected: "text, list, map or plain", Actual: env.Kind}
	}

	switch kind {
	case domain.KindText:
		if env.Text == nil {
			return nil, &domain.ShapeError{Path: path, Expected: "text envelope with \"text\""}
		}
		return TextSeed{Text: *env.Text}, nil
	case domain.KindList:
		items := make([]Seed, len(env.Items))
		for i, raw := range env.Items {
			s, err := decodeEnvelope(raw, domain.JoinPath(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		return ListSeed{Items: items}, nil
	case domain.KindMap:
		fields := make([]Field, len(env.Fields))
		for i, raw := range env.Fields {
			var w fieldWire
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, fmt.Errorf("decode field at %v: %w", path, err)
			}
			s, err := decodeEnvelope(w.Seed, domain.JoinPath(path, w.Key))
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Key: w.Key, Seed: s}
		}
		return MapSeed{Fields: fields}, nil
	default:
		var v any
		if len(env.Value) > 0 {
			if err := json.Unmarshal(env.Value, &v); err != nil {
				return nil, err
			}
		}
		return PlainSeed{Value: v}, nil
	}
}

// MarshalDocument encodes top-level entries as {"entries":[{"name":..,"seed":..}]}.
func MarshalDocument(entries []Field) ([]byte, error) {
	doc := documentWire{Entries: make([]entryWire, len(entries))}
	for i, e := range entries {
		if e.Seed == nil {
			return nil, &domain.ShapeError{Path: []string{e.Key}, Expected: "seed", Actual: "nil"}
		}
		raw, err := json.Marshal(e.Seed)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Key, err)
		}
		doc.Entries[i] = entryWire{Name: e.Key, Seed: raw}
	}
	return json.Marshal(doc)
}

// UnmarshalDocument decodes a seed document. JSON objects use the envelope
// form; anything else is read as YAML with !text, !list and !map tags.
func UnmarshalDocument(data []byte) ([]Field, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return UnmarshalYAMLDocument(data)
	}

	var doc documentWire
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	entries := make([]Field, len(doc.Entries))
	for i, e := range doc.Entries {
		s, err := decodeEnvelope(e.Seed, []string{e.Name})
		if err != nil {
			return nil, err
		}
		entries[i] = Field{Key: e.Name, Seed: s}
	}
	return entries, nil
}
