// Package ini decodes and encodes the flat, sectioned key=value format used by
// emhttp state files, flash config files and notification files.
//
// Decoding is tolerant: a line that cannot be understood is skipped and the
// rest of the document is still returned. Values are kept literally; turning
// "yes"/"no" or "true"/"false" into booleans depends on the field and is left
// to callers (see internal/emhttp).
//
// Encoding is deterministic. Booleans and numbers are written as quoted
// strings, so they come back as strings after a round trip.
package ini
