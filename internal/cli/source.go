package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
)

// Source locates a seed document.
//
// With Dir set, Ref is a document id inside the loam repository at Dir.
// Otherwise Ref is a file: Markdown files are read through loam so their
// frontmatter schema applies, anything else is decoded as a JSON or YAML
// seed document.
type Source struct {
	Dir    string
	Ref    string
	Schema string
}

// ID returns the document id the source resolves to.
func (s Source) ID() string {
	if s.Dir != "" {
		return s.Ref
	}
	base := filepath.Base(s.Ref)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Loader returns the seed loader serving the source.
func (s Source) Loader() (ports.SeedLoader, error) {
	if s.Ref == "" {
		return nil, fmt.Errorf("no seed document given")
	}
	if s.Dir != "" {
		return loom.NewLoader(s.Dir)
	}
	if strings.EqualFold(filepath.Ext(s.Ref), ".md") {
		return loom.NewLoader(filepath.Dir(s.Ref))
	}

	data, err := os.ReadFile(s.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed document: %w", err)
	}
	return memory.NewLoader(map[string]string{s.ID(): string(data)}), nil
}

// Build loads and constructs the document. A Schema on the source takes
// precedence over one declared by the loader.
func (s Source) Build(ctx context.Context, opts ...loom.Option) (*loom.Document, error) {
	loader, err := s.Loader()
	if err != nil {
		return nil, err
	}
	return s.build(ctx, loader, opts...)
}

func (s Source) build(ctx context.Context, loader ports.SeedLoader, opts ...loom.Option) (*loom.Document, error) {
	if s.Schema != "" {
		rec, err := schema.ParseRecord(s.Schema)
		if err != nil {
			return nil, fmt.Errorf("invalid --schema: %w", err)
		}
		opts = append(opts, loom.WithSchema(rec))
	}
	return loom.Load(ctx, loader, s.ID(), opts...)
}
