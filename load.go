package loom

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/loam"

	loamAdapter "github.com/aretw0/loom/pkg/adapters/loam"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
)

// Load reads the seed document id from loader and builds it.
// When loader also implements ports.SchemaSource and declares a record for id,
// that record is used unless opts already set one.
func Load(ctx context.Context, loader ports.SeedLoader, id string, opts ...Option) (*Document, error) {
	raw, err := loader.GetSeed(id)
	if err != nil {
		return nil, err
	}
	entries, err := seed.UnmarshalDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("seed document %s: %w", id, err)
	}

	if src, ok := loader.(ports.SchemaSource); ok {
		text, err := src.GetSchema(id)
		if err != nil {
			return nil, err
		}
		if text != "" {
			rec, err := schema.ParseRecord(text)
			if err != nil {
				return nil, fmt.Errorf("seed document %s: %w", id, err)
			}
			opts = append([]Option{WithSchema(rec)}, opts...)
		}
	}

	return FromContext(ctx, entries, opts...)
}

// NewLoader opens the loam repository at repoPath read-only.
func NewLoader(repoPath string) (*loamAdapter.Loader, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repoPath is required")
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers as json.Number across the JSON and YAML adapters.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.SeedMetadata](repo)), nil
}

// Open builds the seed document id stored in the loam repository at repoPath.
func Open(ctx context.Context, repoPath, id string, opts ...Option) (*Document, error) {
	loader, err := NewLoader(repoPath)
	if err != nil {
		return nil, err
	}
	return Load(ctx, loader, id, opts...)
}
