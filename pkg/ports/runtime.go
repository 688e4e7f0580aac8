package ports

import (
	"iter"

	"github.com/aretw0/loom/pkg/domain"
)

// Container is the behaviour shared by every runtime-managed container.
type Container interface {
	// Kind reports which container kind this is. Never domain.KindPlain.
	Kind() domain.Kind
	// Len returns the number of runes (Text), elements (Array) or entries (Map).
	Len() int
	// ToJSON returns a recursive snapshot in which every nested container is
	// replaced by its own JSON projection.
	ToJSON() any
}

// Text is a collaborative rune sequence.
type Text interface {
	Container
	// Insert inserts s at rune offset index.
	Insert(index int, s string) error
	// Delete removes length runes starting at index.
	Delete(index, length int) error
	String() string
}

// Array is a collaborative ordered sequence.
// Elements are plain values or containers.
type Array interface {
	Container
	// Insert inserts values at index as a single operation, preserving their order.
	Insert(index int, values ...any) error
	Push(values ...any) error
	Delete(index, length int) error
	Get(index int) (any, error)
	All() iter.Seq2[int, any]
	ToArray() []any
}

// Map is a collaborative string-keyed map. Keys are unique and iterate in
// insertion order.
type Map interface {
	Container
	Set(key string, value any) error
	Get(key string) (any, bool)
	Has(key string) bool
	// Delete removes key and reports whether it was present.
	Delete(key string) bool
	Keys() []string
	// Values returns the values in key order.
	Values() []any
	All() iter.Seq2[string, any]
	ForEach(fn func(key string, value any))
}

// Update is delivered to document observers once per committed transaction.
type Update struct {
	Seq    uint64
	Origin any
	// Changed lists the top-level names touched by the transaction, in first-touch order.
	Changed []string
	// Snapshot is the committed JSON projection after the transaction.
	Snapshot map[string]any
	// Patch is an RFC 7386 merge patch from the previous committed snapshot to Snapshot.
	Patch []byte
}

// Doc is a runtime document owning named top-level containers.
//
// A Doc has a single writer. Snapshot and Observe may be used from any goroutine
// and only ever expose committed transactions.
type Doc interface {
	GUID() string

	// GetText fetches or creates the top-level Text under name.
	// Returns domain.ErrKindConflict if name already holds another kind.
	GetText(name string) (Text, error)
	GetArray(name string) (Array, error)
	GetMap(name string) (Map, error)

	// Lookup returns the existing top-level container under name without creating one.
	Lookup(name string) (Container, bool)
	// Names returns top-level names in creation order.
	Names() []string

	// Transact runs fn as one atomic unit. Nested calls join the outer transaction.
	// If fn returns an error every change made by fn is reverted and nothing is published.
	Transact(origin any, fn func() error) error

	// ToJSON projects the live state. Only the writer may call it.
	ToJSON() map[string]any
	// Snapshot returns the last committed sequence number and a copy of its JSON projection.
	Snapshot() (uint64, map[string]any)

	// Observe registers fn for committed updates and returns a function that unregisters it.
	Observe(fn func(Update)) (cancel func())
}

// Runtime allocates documents and detached containers.
// A detached container can be populated freely and becomes part of a document
// once inserted into one of its containers.
type Runtime interface {
	NewDoc() Doc
	NewText() Text
	NewArray() Array
	NewMap() Map
}
