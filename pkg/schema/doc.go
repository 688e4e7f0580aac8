// Package schema describes the shape of loom documents.
//
// It extends a small plain type system (string, int, float, bool, slices and
// custom validators) with the three collaborative container types: Text, List
// and Map. A Record is an ordered table of named fields, each required or
// optional, and is used both as the field set of a Map and as the top-level
// schema of a document.
//
// Basic usage:
//
//	rec := schema.Record{
//	    schema.Required("title", schema.Text()),
//	    schema.Required("tags", schema.List(schema.String())),
//	    schema.Optional("meta", schema.Map(
//	        schema.Required("done", schema.Bool()),
//	    )),
//	}
//
//	err := schema.ValidateDocument(rec, entries) // entries []seed.Field
//
// Records can also be parsed from type strings:
//
//	rec, err := schema.ParseRecord("map{title:text,tags:list<string>,meta?:map{done:bool}}")
//
// The capability projections select fields by type or optionality:
//
//	schema.ExtendsKeyof(rec, schema.Text()) // ["title"]
//	schema.OptionalKeyof(rec)               // ["meta"]
//
// Values and seeds are validated structurally. Container types only accept
// seeds of the same kind; plain types only accept plain seeds.
package schema
