package edgecache

import (
	"context"
	"errors"
)

var (
	// ErrMiss indicates the requested key was not found or has expired.
	ErrMiss = errors.New("edge cache miss")

	// ErrNoFallback indicates the network-first path timed out or failed
	// with no cached entry to fall back to.
	ErrNoFallback = errors.New("network unavailable and no cached fallback")
)

// Store is the persistent backing store for cached responses. Entries
// are scoped by cache name so each rule evicts independently.
//
// Put enforces maxEntries by evicting least-recently-stored entries.
// Implementations must treat expired entries as absent on Get.
type Store interface {
	Get(ctx context.Context, cacheName, key string) (*Entry, error)
	Put(ctx context.Context, cacheName string, entry *Entry, maxEntries int) error
	Delete(ctx context.Context, cacheName, key string) error
}
