/*
Package seed implements the seed protocol: serializable, explicitly tagged
descriptions of the initial state of collaborative containers, and the functions
that turn them into runtime values.

A Seed is one of four variants. The variant is the Go type, so a plain map that
happens to carry a "kind" key is never mistaken for a seed.

	s := seed.Map(
	    seed.F("title", seed.Text("hello")),
	    seed.F("tags", seed.List("a", "b")),
	    seed.F("meta", map[string]any{"done": false}), // plain, copied as-is
	)

	v, err := seed.Materialize(rt, s) // a detached ports.Map
	json := seed.ToJSON(v)            // equals seed.Strip(s)

Seeds can also be read from JSON envelopes ({"kind":"text","text":"hi"}) or
from YAML using the !text, !list and !map tags. Untagged YAML values are plain.
*/
package seed
