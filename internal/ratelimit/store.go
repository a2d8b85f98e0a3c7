package ratelimit

import (
	"context"
	"time"
)

// Store is the ordered-set store the limiter keeps its request records in.
// Scores are Unix milliseconds. Implementations must be safe for concurrent use.
type Store interface {
	// AddMember inserts member into the set at key with the given score.
	AddMember(ctx context.Context, key string, score int64, member string) error
	// RemoveRangeByScore removes members whose score lies in [minScore, maxScore].
	RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore int64) error
	// Cardinality returns the number of members in the set at key.
	Cardinality(ctx context.Context, key string) (int64, error)
	// SetExpiry sets or refreshes the time-to-live of key.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
}

// WindowRecord is one add/prune/count/expire round against a single key.
type WindowRecord struct {
	Key      string
	Score    int64
	Member   string
	PruneMax int64
	TTL      time.Duration
}

// AtomicStore runs a whole WindowRecord as one indivisible operation.
type AtomicStore interface {
	Store
	// RecordWindow inserts the member, prunes scores in [0, PruneMax], refreshes the TTL
	// and returns the remaining cardinality.
	RecordWindow(ctx context.Context, rec WindowRecord) (int64, error)
}
