package schema

import (
	"encoding/json"
	"fmt"
)

type fieldJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// MarshalJSON serializes the record as an ordered list of {name, type, optional}.
func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	raw := make([]fieldJSON, len(r))
	for i, f := range r {
		if f.Type == nil {
			return nil, fmt.Errorf("field %s: type is nil", f.Name)
		}
		raw[i] = fieldJSON{Name: f.Name, Type: f.Type.Name(), Optional: f.Optional}
	}

	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the record from the ordered list form, or from a
// map of field names to type strings (ordered by name, '?' suffix for optional).
func (r *Record) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(data) == "null" {
		*r = nil
		return nil
	}

	var list []fieldJSON
	if err := json.Unmarshal(data, &list); err == nil {
		rec := make(Record, len(list))
		for i, f := range list {
			t, err := ParseType(f.Type)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
			rec[i] = Field{Name: f.Name, Type: t, Optional: f.Optional}
		}
		*r = rec
		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Fallback: try map[string]any for cases where JSON decodes to mixed types
		var rawAny map[string]any
		if errAny := json.Unmarshal(data, &rawAny); errAny != nil {
			return err
		}
		raw = make(map[string]string, len(rawAny))
		for key, value := range rawAny {
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: expected string type, got %T", key, value)
			}
			raw[key] = str
		}
	}

	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}

	*r = parsed
	return nil
}
