package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// Type defines the contract for field validation.
// Implementations determine how values are validated against a type.
type Type interface {
	// Name returns the canonical type string (e.g., "string", "list<text>").
	// ParseType(t.Name()) yields an equivalent type.
	Name() string
	// Kind returns the value kind this type describes.
	Kind() domain.Kind
	// Validate checks if a plain (JSON-projected) value conforms to this type.
	Validate(value any) error
}

// --- Plain Types ---

type plain struct{}

func (plain) Kind() domain.Kind { return domain.KindPlain }

// StringType validates string values.
type StringType struct{ plain }

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	_, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

// IntType validates integer values.
type IntType struct{ plain }

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// Accept floats that are whole numbers (from JSON unmarshaling)
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

// FloatType validates floating-point values.
type FloatType struct{ plain }

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

// BoolType validates boolean values.
type BoolType struct{ plain }

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	_, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// NullType only accepts nil.
type NullType struct{ plain }

func (t *NullType) Name() string { return "null" }

func (t *NullType) Validate(value any) error {
	if value != nil {
		return fmt.Errorf("expected null, got %T", value)
	}
	return nil
}

// AnyType accepts every value, plain or container.
type AnyType struct{ plain }

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Validate(any) error { return nil }

// SliceType validates plain slices of a specific element type.
type SliceType struct {
	plain
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

// Elem returns the element type.
func (t *SliceType) Elem() Type { return t.elemType }

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected slice, got %T", value)
	}

	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if err := t.elemType.Validate(elem); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	plain
	name     string
	validate func(any) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value any) error {
	return t.validate(value)
}

// --- Container Types ---

// TextType describes a collaborative Text. Its JSON projection is a string.
type TextType struct{}

func (t *TextType) Name() string      { return "text" }
func (t *TextType) Kind() domain.Kind { return domain.KindText }

func (t *TextType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected text, got %T", value)
	}
	return nil
}

// ListType describes a collaborative List whose elements share one type.
type ListType struct {
	elemType Type
}

func (t *ListType) Name() string      { return fmt.Sprintf("list<%s>", t.elemType.Name()) }
func (t *ListType) Kind() domain.Kind { return domain.KindList }

// Elem returns the element type.
func (t *ListType) Elem() Type { return t.elemType }

func (t *ListType) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i, it := range items {
		if err := t.elemType.Validate(it); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// MapType describes a collaborative Map. A MapType with a nil record is open
// and accepts any keys.
type MapType struct {
	fields Record
}

func (t *MapType) Kind() domain.Kind { return domain.KindMap }

func (t *MapType) Name() string {
	if t.fields == nil {
		return "map"
	}
	return "map" + t.fields.String()
}

// Fields returns the declared field table, or nil for an open map.
func (t *MapType) Fields() Record { return t.fields }

// Open reports whether the map accepts arbitrary keys.
func (t *MapType) Open() bool { return t.fields == nil }

func (t *MapType) Validate(value any) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected map, got %T", value)
	}
	if t.fields == nil {
		return nil
	}
	return Validate(t.fields, obj)
}

// --- Factory Functions ---

// String creates a string type validator.
func String() Type { return &StringType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Float creates a float type validator.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Null creates a type that only accepts nil.
func Null() Type { return &NullType{} }

// Any creates a type that accepts everything.
func Any() Type { return &AnyType{} }

// Slice creates a slice type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(any) error) Type {
	return &CustomType{name: name, validate: validate}
}

// Text creates the collaborative text type.
func Text() Type { return &TextType{} }

// List creates a collaborative list type with the given element type.
func List(elemType Type) Type {
	return &ListType{elemType: elemType}
}

// Map creates a collaborative map type with the given fields.
// Map() with no fields declares an empty record; use AnyMap for an open map.
func Map(fields ...Field) Type {
	rec := make(Record, len(fields))
	copy(rec, fields)
	return &MapType{fields: rec}
}

// AnyList matches every list type.
func AnyList() Type { return List(Any()) }

// AnyMap matches every map type.
func AnyMap() Type { return &MapType{} }

// --- Assignability ---

// Assignable reports whether every value of type t is also a value of target.
// Maps are structural: t may declare more fields than target, and a field
// required by target must be required by t.
func Assignable(t, target Type) bool {
	if _, ok := target.(*AnyType); ok {
		return true
	}
	if t.Kind() != target.Kind() {
		return false
	}

	switch tt := target.(type) {
	case *ListType:
		src, ok := t.(*ListType)
		return ok && Assignable(src.elemType, tt.elemType)
	case *MapType:
		src, ok := t.(*MapType)
		if !ok {
			return false
		}
		if tt.Open() {
			return true
		}
		if src.Open() {
			return false
		}
		for _, f := range tt.fields {
			sf, found := src.fields.Lookup(f.Name)
			if !found {
				if f.Optional {
					continue
				}
				return false
			}
			if sf.Optional && !f.Optional {
				return false
			}
			if !Assignable(sf.Type, f.Type) {
				return false
			}
		}
		return true
	case *SliceType:
		src, ok := t.(*SliceType)
		return ok && Assignable(src.elemType, tt.elemType)
	case *FloatType:
		switch t.(type) {
		case *FloatType, *IntType:
			return true
		}
		return false
	default:
		return t.Name() == target.Name()
	}
}

// --- Parsing ---

// ParseType converts a type string to a Type.
//
// Grammar:
//
//	string | int | float | bool | null | any | text
//	[T]                 plain slice
//	list<T>             collaborative list
//	map                 open collaborative map
//	map{a:T,b?:T}       collaborative map; '?' marks an optional field
func ParseType(typeStr string) (Type, error) {
	p := &parser{src: typeStr}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseRecord parses a field table written as "{a:T,b?:T}" or "map{a:T,b?:T}".
func ParseRecord(s string) (Record, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "map") {
		s = "map" + s
	}
	t, err := ParseType(s)
	if err != nil {
		return nil, err
	}
	mt := t.(*MapType)
	if mt.Open() {
		return Record{}, nil
	}
	return mt.fields, nil
}

// ParseTypeMap converts a map of field names to type strings into a Record
// ordered by name. A trailing '?' on a name marks the field optional.
// Example: {"title": "text", "meta?": "map{done:bool}"}
func ParseTypeMap(typeMap map[string]string) (Record, error) {
	result := make(Record, 0, len(typeMap))
	for _, key := range sortedKeys(typeMap) {
		t, err := ParseType(typeMap[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		if name, ok := strings.CutSuffix(key, "?"); ok {
			result = append(result, Optional(name, t))
			continue
		}
		result = append(result, Required(key, t))
	}
	return result, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("unsupported type %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expect(tok string) error {
	if !p.accept(tok) {
		return p.errorf("expected %q", tok)
	}
	return nil
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for !p.done() {
		c := p.src[p.pos]
		if c == '_' || c == '-' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) parseType() (Type, error) {
	if p.accept("[") {
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	name := p.ident()
	switch name {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "null":
		return Null(), nil
	case "any":
		return Any(), nil
	case "text":
		return Text(), nil
	case "list":
		if err := p.expect("<"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(">"); err != nil {
			return nil, err
		}
		return List(elem), nil
	case "map":
		if !p.accept("{") {
			return AnyMap(), nil
		}
		rec := Record{}
		if p.accept("}") {
			return &MapType{fields: rec}, nil
		}
		for {
			fname := p.ident()
			if fname == "" {
				return nil, p.errorf("expected field name")
			}
			optional := p.accept("?")
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			ft, err := p.parseType()
			if err != nil {
				return nil, err
			}
			rec = append(rec, Field{Name: fname, Type: ft, Optional: optional})
			if p.accept("}") {
				break
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		return &MapType{fields: rec}, nil
	case "":
		return nil, p.errorf("expected type")
	default:
		return nil, fmt.Errorf("unsupported type: %s", name)
	}
}
