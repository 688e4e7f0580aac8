/*
Package session keeps live documents in step with a snapshot store.

A Manager owns one loom.Document per ID. Every mutation runs under a per-ID
lock (and an optional distributed lock) inside a single runtime transaction,
and the committed projection is persisted before the lock is released.
Documents evicted from memory are rebuilt from their last snapshot by
reseeding the stored JSON against the stored record.
*/
package session
