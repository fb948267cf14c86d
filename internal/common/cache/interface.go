package cache

import (
	"context"
	"time"
)

// Cache defines the unified interface for cache operations.
// This abstraction allows switching between different cache implementations
// without changing business logic, and keeps multi-instance deployments
// correct: every operation here is atomic at the store.
type Cache interface {
	BasicOps
	HashOps
	ZSetOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key.
	// Returns an empty string when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist (atomic operation).
	// Returns true if the key was set, false if it already existed.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error
}

// HashOps defines hash (map) operations
type HashOps interface {
	// HSet sets field in the hash stored at key to value
	HSet(ctx context.Context, key, field string, value interface{}) error

	// HSetNX sets field only if it does not already exist (atomic operation).
	// Returns true if the field was set, false if it already existed.
	HSetNX(ctx context.Context, key, field string, value interface{}) (bool, error)

	// HGetAll returns all fields and values of the hash stored at key
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HMSet sets multiple fields in the hash stored at key
	HMSet(ctx context.Context, key string, fields map[string]interface{}) error
}

// ZSetOps defines sorted set operations (the matchmaking queue is a ZSET)
type ZSetOps interface {
	// ZAdd adds one or more members with scores to a sorted set
	ZAdd(ctx context.Context, key string, members ...ZMember) error

	// ZAddNX adds a member only if it is not already in the set.
	// Returns true if the member was added, false if it was already present.
	ZAddNX(ctx context.Context, key string, member ZMember) (bool, error)

	// ZRem removes one or more members from a sorted set
	ZRem(ctx context.Context, key string, members ...string) error

	// ZCard returns the number of members in a sorted set
	ZCard(ctx context.Context, key string) (int64, error)

	// ZPopMin atomically removes and returns the member with the lowest score.
	// Concurrent callers never receive the same member. Returns ok=false when
	// the set is empty.
	ZPopMin(ctx context.Context, key string) (member ZMember, ok bool, err error)
}

// ZMember is a member of a sorted set with its score
type ZMember struct {
	Score  float64
	Member string
}
