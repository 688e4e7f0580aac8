// Package cli holds the plumbing behind the loom command: configuration,
// snapshot backends, seed document sources and terminal output.
package cli
