/*
Package domain contains the core vocabulary shared by every loom package.

It defines the closed set of value kinds a document can hold, the error taxonomy
used to report shape and precondition violations, and the persisted snapshot
entity. This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Kind: Plain, Text, List or Map. Every seed and every materialized value has exactly one.
  - ShapeError: a value or seed does not match the kind the caller (or the schema) expects.
  - PreconditionError: a protocol contract was broken, e.g. applying a seed to a non-empty container.
  - Snapshot: the committed JSON projection of a document, as stored by persistence adapters.
  - Hooks: lifecycle callbacks for document construction.
*/
package domain
