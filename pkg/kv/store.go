// Package kv provides the key-value storage backends used for article
// records and feed snapshots.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is the storage contract the feed engine is written against.
// Any durable key-value backend (or a relational table keyed by the
// key column) can satisfy it.
type Store interface {
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// ListByPrefix returns up to limit keys that start with prefix.
	// Enumeration order is stable for a given backend but otherwise
	// unspecified. limit <= 0 means no limit.
	ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error)

	// Close releases the backend connection.
	Close(ctx context.Context) error
}
