package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound distinguishes "key absent" from a transport or store failure.
// Callers that degrade best-effort treat only this error as an empty result.
var ErrNotFound = errors.New("key not found")

// ScoredMember is one entry of a sorted set: wallet → points in the ranking
// sets, JSON payload → timestamp in the history sets.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the key/value + sorted-set port behind all durable game state.
// Semantics follow Redis: ZRange uses inclusive start/stop with negative
// indices counting from the end, ascending score order with ties ordered by
// member. Every call takes a context; implementations must impose their own
// timeouts on top of it.
type Store interface {
	// Get returns the raw string value, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a string value. ttl <= 0 means no expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes only if the key does not exist and reports whether the
	// write happened. This is the conditional-write primitive guarding
	// duplicate bets and double resolution.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// IncrBy atomically adds delta to an integer counter (missing counts
	// start at zero) and returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// ZAdd inserts or updates members of a sorted set.
	ZAdd(ctx context.Context, key string, members ...ScoredMember) error

	// ZRange returns members in rank order [start, stop].
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeWithScores returns members with their scores in rank order.
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZRemRangeByRank removes members in rank order [start, stop].
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	// Close releases the underlying connections.
	Close() error
}
