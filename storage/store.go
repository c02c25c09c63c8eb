// Package storage defines the abstract key-value contract the engine
// persists through, plus the Redis, SQLite and in-memory implementations.
// Any durable store satisfying KVStore is acceptable; values are stored as
// JSON documents and indexes as newest-first string lists.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers treat it as a degraded-mode signal, not a fatal condition.
var ErrUnavailable = errors.New("storage: backend unavailable")

// KVStore is the persistence contract for rules, baselines, anomalies and
// their indexes. List operations maintain newest-first ordering: ListPush
// prepends and ListRange(0, n-1) returns the n most recent entries.
type KVStore interface {
	// Get unmarshals the JSON value at key into dest. Returns ErrNotFound
	// when the key is absent.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set marshals value to JSON and stores it at key, overwriting any
	// previous value.
	Set(ctx context.Context, key string, value interface{}) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// ListPush prepends value to the list at key.
	ListPush(ctx context.Context, key, value string) error
	// ListRange returns list entries in [start, stop], newest first.
	// A stop of -1 means the end of the list.
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ListTrim keeps only the newest max entries of the list at key.
	ListTrim(ctx context.Context, key string, max int64) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend connection.
	Close() error
}
