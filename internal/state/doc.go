// Package state holds the single authoritative in-memory snapshot of every
// state slice the daemon knows about.
//
// A slice is the decoded content of one state file. Slices are replaced whole;
// nothing outside the ingestion pipeline mutates them and no caller may merge
// into one. Every accepted replacement bumps a monotonic version, and readers
// always observe a snapshot that belongs to exactly one version.
//
// The store exposes replacements through OnReplace hooks rather than importing
// the pub/sub hub, which keeps the dependency graph acyclic.
package state
