// Package memory provides in-process implementations of the loom ports:
// a CRDT-shaped reference Runtime, a SnapshotStore and a SeedLoader.
//
// The Runtime is not a replicating CRDT. It models the contract loom relies on
// (fetch-or-create roots, detached containers, atomic transactions, committed
// snapshots and observers) so that the seed protocol and the document root can be
// exercised and tested without an external engine.
package memory
