package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/aretw0/loom/pkg/seed"
	"github.com/aretw0/loom/pkg/session"
)

// Preload creates one managed document per seed document of loader.
// Documents that already exist in the store are left untouched.
// It returns the number of documents created.
func Preload(ctx context.Context, mgr *session.Manager, loader ports.SeedLoader, logger *slog.Logger) (int, error) {
	ids, err := loader.ListSeeds()
	if err != nil {
		return 0, fmt.Errorf("failed to list seeds: %w", err)
	}

	created := 0
	for _, id := range ids {
		entries, opts, err := readSeed(loader, id)
		if err != nil {
			return created, err
		}
		_, err = mgr.Create(ctx, id, entries, opts...)
		if errors.Is(err, domain.ErrDocumentExists) {
			logger.Debug("Document already present, skipping", "id", id)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("preload %s: %w", id, err)
		}
		created++
	}
	logger.Info("Documents preloaded", "created", created, "seeds", len(ids))
	return created, nil
}

func readSeed(loader ports.SeedLoader, id string) ([]seed.Field, []loom.Option, error) {
	raw, err := loader.GetSeed(id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := seed.UnmarshalDocument(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("seed document %s: %w", id, err)
	}

	src, ok := loader.(ports.SchemaSource)
	if !ok {
		return entries, nil, nil
	}
	text, err := src.GetSchema(id)
	if err != nil || text == "" {
		return entries, nil, err
	}
	rec, err := schema.ParseRecord(text)
	if err != nil {
		return nil, nil, fmt.Errorf("seed document %s: %w", id, err)
	}
	return entries, []loom.Option{loom.WithSchema(rec)}, nil
}
