// Package store provides the durable key-value storage used to persist
// per-resource change records across reboots. Two backends are available:
// a local JSON file (the default) and a NATS JetStream KV bucket for
// fleet-visible state.
package store

import "context"

// Store is the persistence interface the reconciler depends on.
// Implementations must guarantee atomic Get/Set and durability after Flush.
type Store interface {
	// Get retrieves the value for key. The boolean reports whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Flush persists any buffered writes.
	Flush(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
