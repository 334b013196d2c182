package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: not found")

// KV is the key/value surface the console persists its state through.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Store is the root persistence interface. Concrete drivers (sqlite, memory)
// implement it.
type Store interface {
	KV

	ApplyMigrations() error

	// WithTx runs fn against a transaction-scoped KV. If fn returns an error
	// nothing it wrote is kept.
	WithTx(ctx context.Context, fn func(tx KV) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
