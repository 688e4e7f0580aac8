package ports

import "context"

// SeedLoader defines how serialized document seeds are retrieved.
// This allows the storage layer (Loam, FS, Memory) to be decoupled.
type SeedLoader interface {
	// GetSeed retrieves the raw seed document by ID.
	GetSeed(id string) ([]byte, error)

	// ListSeeds returns the IDs of all seed documents available.
	ListSeeds() ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the ID of every changed seed document.
	Watch(ctx context.Context) (<-chan string, error)
}

// SchemaSource is implemented by loaders that store a declared record next to
// each seed document. The record uses the "{name:type,opt?:type}" notation.
type SchemaSource interface {
	// GetSchema returns the record declared for id, or "" when none is declared.
	GetSchema(id string) (string, error)
}
