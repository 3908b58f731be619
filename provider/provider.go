// Package provider defines the storage abstraction behind both cache tiers.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. The cache frames every
// value in its own envelope (storedAt, ttl, payload) and treats anything else
// under its keys as corruption.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// A non-positive ttl means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Scanner is implemented by stores that can enumerate keys matching a glob
// pattern (`*`, `?`, `[...]`). Stores without it are skipped by pattern
// invalidation and report no keys in stats.
type Scanner interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// BulkDeleter removes many keys in one round trip and reports how many existed.
type BulkDeleter interface {
	DelMany(ctx context.Context, keys []string) (int, error)
}

// Connectivity is implemented by remote stores that track reachability.
// A store reporting false is bypassed for reads and writes.
type Connectivity interface {
	Connected() bool
}

// Sizer reports the number of live entries.
type Sizer interface {
	Len() int
}
