// Package errors provides the classified error primitives shared by every nasstate component.
//
// Errors carry a category (what failed), a severity (how bad) and a retry strategy
// (what the caller should do next). The taxonomy mirrors the ingestion and relay core:
//
//   - CategoryParse:         malformed state/notification content; recoverable, skip or partially apply
//   - CategoryFileSystem:    I/O or permission failures reading state files
//   - CategorySerialization: encode-time failures; a caller bug
//   - CategorySubscription:  subscriber limits on the pub/sub hub
//   - CategoryConnection:    relay link failures, transient or fatal
//
// Example usage:
//
//	err := errors.FileAccessError("read state file").
//		WithContext("path", path).
//		Build()
package errors
