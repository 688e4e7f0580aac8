package schema

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/seed"
)

func TestInferDocument(t *testing.T) {
	entries := []seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a", "b")),
		seed.F("meta", seed.Map(seed.F("done", false))),
		seed.F("nums", seed.List(1, 2.5)),
		seed.F("mixed", seed.List("a", seed.Text("b"))),
		seed.F("empty", seed.List()),
	}

	rec := InferDocument(entries)
	want := "{title:text,tags:list<string>,meta:map{done:bool},nums:list<float>,mixed:list<any>,empty:list<any>}"
	if rec.String() != want {
		t.Errorf("InferDocument() = %s, want %s", rec.String(), want)
	}
	if err := ValidateDocument(rec, entries); err != nil {
		t.Errorf("inferred record rejects its own entries: %v", err)
	}
}

func TestInferPlain(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, "null"},
		{"s", "string"},
		{3, "int"},
		{3.0, "float"},
		{[]any{"a", "b"}, "[string]"},
		{[]string{"a"}, "[string]"},
		{map[string]any{"k": 1}, "any"},
	}
	for _, tt := range tests {
		if got := Infer(seed.Plain(tt.value)).Name(); got != tt.want {
			t.Errorf("Infer(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestReseedDocument(t *testing.T) {
	rec := Record{
		Required("title", Text()),
		Required("tags", List(String())),
		Required("meta", Map(Required("done", Bool()), Optional("note", Text()))),
		Optional("extra", AnyMap()),
	}
	data := map[string]any{
		"title": "hello",
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"done": false},
	}

	entries, err := ReseedDocument(rec, data)
	if err != nil {
		t.Fatalf("ReseedDocument() error = %v", err)
	}

	want := []seed.Field{
		{Key: "title", Seed: seed.Text("hello")},
		{Key: "tags", Seed: seed.List("a", "b")},
		{Key: "meta", Seed: seed.MapSeed{Fields: []seed.Field{{Key: "done", Seed: seed.Plain(false)}}}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("ReseedDocument() = %#v, want %#v", entries, want)
	}
	if !reflect.DeepEqual(seed.StripDocument(entries), data) {
		t.Error("reseeded entries do not strip back to the snapshot")
	}
}

func TestReseed_Errors(t *testing.T) {
	rec := Record{Required("title", Text())}

	tests := []struct {
		name string
		data map[string]any
	}{
		{"missing", map[string]any{}},
		{"wrong kind", map[string]any{"title": 1}},
		{"unknown key", map[string]any{"title": "x", "other": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReseedDocument(rec, tt.data)
			if !errors.Is(err, domain.ErrShapeViolation) {
				t.Errorf("ReseedDocument() error = %v, want shape violation", err)
			}
		})
	}

	s, err := Reseed(AnyMap(), map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(seed.MapSeed).Fields[0].Key; got != "a" {
		t.Errorf("open map keys should be sorted, first = %q", got)
	}
}
