package tests

import (
	"testing"

	"github.com/aretw0/loom/pkg/ports"
)

// SeedLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.SeedLoader.
func SeedLoaderContractTest(t *testing.T, loader ports.SeedLoader, setupIDs []string) {
	t.Helper()

	t.Run("GetSeed_Success", func(t *testing.T) {
		for _, id := range setupIDs {
			content, err := loader.GetSeed(id)
			if err != nil {
				t.Fatalf("unexpected error getting seed %s: %v", id, err)
			}
			if len(content) == 0 {
				t.Errorf("empty content for %s", id)
			}
		}
	})

	t.Run("GetSeed_NotFound", func(t *testing.T) {
		_, err := loader.GetSeed("non-existent-seed")
		if err == nil {
			t.Error("expected error for non-existent seed, got nil")
		}
	})

	t.Run("ListSeeds", func(t *testing.T) {
		ids, err := loader.ListSeeds()
		if err != nil {
			t.Fatalf("unexpected error listing seeds: %v", err)
		}

		if len(ids) != len(setupIDs) {
			t.Errorf("expected %d seeds, got %d", len(setupIDs), len(ids))
		}

		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for _, id := range setupIDs {
			if !lookup[id] {
				t.Errorf("seed %s missing from list", id)
			}
		}
	})
}
