/*
Package ports defines the driven ports (interfaces) for loom.

These interfaces decouple the seed protocol and the document root from the CRDT
runtime that actually stores and merges collaborative state, and from the
backends that persist committed snapshots.

# Key Interfaces

  - Runtime: allocates documents and detached Text, Array and Map containers.
  - Doc: a runtime document owning named top-level containers, with transactions and observers.
  - SnapshotStore: persists the committed JSON projection of documents.
  - SeedLoader: retrieves serialized document seeds (e.g., from Loam or Memory).
  - DistributedLocker: coordinates concurrent document access across replicas.
*/
package ports
