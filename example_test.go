package loom_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// ExampleFrom builds a small document and projects it back to JSON.
func ExampleFrom() {
	doc, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a", "b")),
		seed.F("meta", seed.Map(seed.F("done", false))),
	})
	if err != nil {
		log.Fatal(err)
	}

	data, err := doc.ToJSON()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(data["title"], data["tags"], data["meta"])

	// Accessors are restricted to names declared with a compatible kind.
	_, err = doc.GetText("tags")
	fmt.Println(errors.Is(err, domain.ErrKindMismatch))

	// Output:
	// hello [a b] map[done:false]
	// true
}

// ExampleDocument_Map shows field-level rules on a declared map.
func ExampleDocument_Map() {
	rec := schema.Record{
		schema.Required("meta", schema.Map(
			schema.Required("done", schema.Bool()),
			schema.Optional("note", schema.Text()),
		)),
	}
	doc, err := loom.From([]seed.Field{
		seed.F("meta", seed.Map(seed.F("done", false), seed.F("note", seed.Text("draft")))),
	}, loom.WithSchema(rec))
	if err != nil {
		log.Fatal(err)
	}

	meta, err := doc.Map("meta")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(meta.Delete("note"))
	fmt.Println(errors.Is(meta.Delete("done"), domain.ErrRequiredKey))
	fmt.Println(meta.ToJSON())

	// Output:
	// <nil>
	// true
	// map[done:false]
}

// ExampleDocument_Observe shows that a transaction reaches observers once.
func ExampleDocument_Observe() {
	doc, err := loom.From([]seed.Field{
		seed.F("title", seed.Text("draft")),
		seed.F("log", seed.List()),
	})
	if err != nil {
		log.Fatal(err)
	}

	cancel, _ := doc.Observe(func(u ports.Update) {
		fmt.Println(u.Seq, u.Changed, string(u.Patch))
	})
	defer cancel()

	title, _ := doc.GetText("title")
	entries, _ := doc.GetArray("log")
	_ = doc.Transact(func() error {
		if err := title.Delete(0, 5); err != nil {
			return err
		}
		if err := title.Insert(0, "final"); err != nil {
			return err
		}
		return entries.Push("published")
	})

	// Output:
	// 2 [title log] {"log":["published"],"title":"final"}
}
