/*
Package dsl provides a Go DSL (Domain Specific Language) for declaring loom documents.

It builds the record and the seeds of a document side by side, so the declared
type of every top-level name sits next to its initial content. This is
particularly useful for documents defined in code, unit tests, and leveraging
IDE autocompletion/type-checking.

Example usage:

	b := dsl.New()

	b.Text("title", "hello")
	b.List("tags", schema.String(), "a", "b")
	b.Map("meta").
		Field("done", schema.Bool(), false).
		OptionalField("owner", schema.String(), nil)
	b.Text("notes", "").Deferred()

	doc, err := b.Document()
	// doc.Schema() == {title:text,tags:list<string>,meta:map{done:bool,owner?:string},notes?:text}
*/
package dsl
