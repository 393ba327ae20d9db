// Package ingest connects state files to the canonical store and the hub.
//
// A change reported by the watch registry takes a store ticket at once, loads
// the file off the store's critical section and commits under that ticket, so
// a slow load can never overwrite a newer one. Every accepted replacement is
// published as a SliceChanged on the key's channels.
package ingest
