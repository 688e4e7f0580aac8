package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// SnapshotStore defines the interface for persisting committed document snapshots.
type SnapshotStore interface {
	// Save persists the snapshot under its DocID.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves the latest snapshot for a document.
	// Returns domain.ErrSnapshotNotFound if the document does not exist.
	Load(ctx context.Context, docID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a document.
	Delete(ctx context.Context, docID string) error

	// List returns all stored document IDs.
	List(ctx context.Context) ([]string, error)
}
