package memory

import (
	"fmt"
	"sort"

	"github.com/aretw0/loom/pkg/seed"
)

// Loader implements ports.SeedLoader using an in-memory map.
type Loader struct {
	docs map[string][]byte
}

// NewLoader creates a new Loader with the provided raw seed documents (JSON or YAML).
func NewLoader(data map[string]string) *Loader {
	docs := make(map[string][]byte, len(data))
	for k, v := range data {
		docs[k] = []byte(v)
	}
	return &Loader{docs: docs}
}

// NewFromEntries creates a Loader from in-process seed documents.
// This handles serialization automatically, improving DX for tests.
func NewFromEntries(docs map[string][]seed.Field) (*Loader, error) {
	data := make(map[string][]byte, len(docs))
	for id, entries := range docs {
		if id == "" {
			return nil, fmt.Errorf("seed document missing ID")
		}
		b, err := seed.MarshalDocument(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal seed document %s: %w", id, err)
		}
		data[id] = b
	}
	return &Loader{docs: data}, nil
}

// GetSeed retrieves the raw seed document by ID.
func (l *Loader) GetSeed(id string) ([]byte, error) {
	content, ok := l.docs[id]
	if !ok {
		return nil, fmt.Errorf("seed document not found: %s", id)
	}
	return content, nil
}

// ListSeeds returns all available seed document IDs.
func (l *Loader) ListSeeds() ([]string, error) {
	keys := make([]string, 0, len(l.docs))
	for k := range l.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
