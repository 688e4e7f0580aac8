package schema

import (
	"fmt"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/seed"
)

// Validate checks if plain data (a JSON projection) conforms to the record.
// Returns an error with all validation failures found.
func Validate(r Record, data map[string]any) error {
	var errs []error

	for _, f := range r {
		value, exists := data[f.Name]
		if !exists {
			if !f.Optional {
				errs = append(errs, &ValidationError{Key: f.Name, Reason: "required"})
			}
			continue
		}

		if err := f.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    f.Name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	for _, key := range sortedKeys(data) {
		if _, declared := r.Lookup(key); !declared {
			errs = append(errs, &ValidationError{Key: key, Reason: "not defined in schema", Value: data[key]})
		}
	}

	return aggregate(errs)
}

// ValidateSeed checks that s describes a value of type t. Container types only
// accept seeds of their own kind and plain types only accept plain seeds.
func ValidateSeed(t Type, s seed.Seed) error {
	return validateSeed(t, s, nil)
}

// ValidateDocument checks top-level entries against the document record.
// Repeated names are resolved last-wins before checking.
func ValidateDocument(r Record, entries []seed.Field) error {
	return aggregate(validateFields(r, seed.MapSeed{Fields: entries}.Dedup(), nil))
}

func validateSeed(t Type, s seed.Seed, path []string) error {
	if s != nil {
		s = seed.Of(s)
	}
	if s == nil {
		return &domain.ShapeError{Path: path, Expected: t.Name(), Actual: "nil seed"}
	}
	if _, ok := t.(*AnyType); ok {
		return seed.Check(s)
	}

	switch tt := t.(type) {
	case *TextType:
		if _, ok := s.(seed.TextSeed); !ok {
			return domain.Mismatch(path, domain.KindText, s.Kind())
		}
		return nil
	case *ListType:
		ls, ok := s.(seed.ListSeed)
		if !ok {
			return domain.Mismatch(path, domain.KindList, s.Kind())
		}
		var errs []error
		for i, it := range ls.Items {
			if err := validateSeed(tt.elemType, it, domain.JoinPath(path, fmt.Sprint(i))); err != nil {
				errs = append(errs, err)
			}
		}
		return aggregate(errs)
	case *MapType:
		ms, ok := s.(seed.MapSeed)
		if !ok {
			return domain.Mismatch(path, domain.KindMap, s.Kind())
		}
		if tt.Open() {
			return seed.Check(ms)
		}
		return aggregate(validateFields(tt.fields, ms.Dedup(), path))
	default:
		ps, ok := s.(seed.PlainSeed)
		if !ok {
			return domain.Mismatch(path, domain.KindPlain, s.Kind())
		}
		if err := t.Validate(ps.Value); err != nil {
			return &domain.ShapeError{Path: path, Expected: t.Name(), Actual: err.Error()}
		}
		return nil
	}
}

func validateFields(r Record, fields []seed.Field, path []string) []error {
	var errs []error
	present := make(map[string]seed.Seed, len(fields))
	for _, f := range fields {
		present[f.Key] = f.Seed
	}

	for _, f := range r {
		s, ok := present[f.Name]
		if !ok {
			if !f.Optional {
				errs = append(errs, &domain.ShapeError{Path: domain.JoinPath(path, f.Name), Expected: "required field", Actual: "missing"})
			}
			continue
		}
		if err := validateSeed(f.Type, s, domain.JoinPath(path, f.Name)); err != nil {
			errs = append(errs, err)
		}
	}

	for _, f := range fields {
		if _, declared := r.Lookup(f.Key); !declared {
			errs = append(errs, &domain.ShapeError{Path: domain.JoinPath(path, f.Key), Expected: "declared field", Actual: "unknown key"})
		}
	}
	return errs
}
