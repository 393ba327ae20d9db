// Package pubsub is the in-process fan-out hub between the state core and its
// consumers.
//
// Handlers subscribe to a named channel and receive every message published on
// it, synchronously and in registration order. A failing or panicking handler
// never stops delivery to the others. Subscriptions are tracked in a per-channel
// slot table; a Handle carries the slot generation so a stale Unsubscribe can
// never remove a newer subscriber that reused the slot.
package pubsub
