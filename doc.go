/*
Package loom is a typed construction and projection layer over a collaborative
document (CRDT) runtime offering Text, List and Map containers.

It keeps three shapes of the same tree in agreement: a schema describing the
desired shape, a seed describing initial content, and the materialized runtime
value. A fourth projection, JSON, flattens materialized values back to plain data.

# Seeds

Seeds are explicitly tagged. Plain Go values are never mistaken for seeds, so a
plain map carrying a "kind" key stays plain data.

	entries := []seed.Field{
		seed.F("title", seed.Text("hello")),
		seed.F("tags", seed.List("a", "b")),
		seed.F("meta", seed.Map(seed.F("done", false))),
	}

# Documents

From builds every top-level container inside one runtime transaction, so
observers see either nothing or the whole document.

	doc, err := loom.From(entries)
	if err != nil {
		log.Fatal(err)
	}

	tags, err := doc.GetArray("tags")   // ok
	_, err = doc.GetText("tags")        // domain.ErrKindMismatch

	data, _ := doc.ToJSON()
	// map[meta:map[done:false] tags:[a b] title:hello]

# Mutations

Apply runs a batch of JSON-friendly mutations in one transaction. Values are
checked against the record, and any failure reverts the whole batch.

	err = doc.Apply(
		loom.Mutation{Op: loom.OpListPush, Name: "tags", Value: "c"},
		loom.Mutation{Op: loom.OpMapSet, Name: "meta", Key: "done", Value: true},
	)

For persisted documents shared between goroutines or processes, see the
session package, which locks, updates and snapshots documents by id.

Seed documents can also be loaded from a loam repository with Open, where the
body of each Markdown file is a tagged YAML seed document:

	---
	schema: "{title:text,tags:list<string>,meta:map{done:bool}}"
	---
	title: !text hello
	tags: !list [a, b]
	meta: !map {done: false}
*/
package loom
