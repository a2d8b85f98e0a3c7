package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
)

// recordWindowScript adds the request, prunes [0, cutoff], counts and refreshes the TTL in one step.
//
// KEYS[1] identity key
// ARGV[1] score (unix ms), ARGV[2] member, ARGV[3] prune cutoff (unix ms), ARGV[4] ttl (ms)
var recordWindowScript = redis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[3])
local count = redis.call('ZCARD', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return count
`)

// RateLimitRedisStore is a Redis implementation of ratelimit.AtomicStore backed by sorted sets.
type RateLimitRedisStore struct {
	client *redis.Client
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client}
}

func (r *RateLimitRedisStore) AddMember(ctx context.Context, key string, score int64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err()
}

func (r *RateLimitRedisStore) RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore int64) error {
	return r.client.ZRemRangeByScore(ctx, key,
		strconv.FormatInt(minScore, 10),
		strconv.FormatInt(maxScore, 10),
	).Err()
}

func (r *RateLimitRedisStore) Cardinality(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *RateLimitRedisStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// RecordWindow runs the whole window round as a Lua script, so concurrent callers never
// observe each other's partial state.
func (r *RateLimitRedisStore) RecordWindow(ctx context.Context, rec ratelimit.WindowRecord) (int64, error) {
	reply, err := recordWindowScript.Run(ctx, r.client,
		[]string{rec.Key},
		rec.Score, rec.Member, rec.PruneMax, rec.TTL.Milliseconds(),
	).Result()
	if err != nil {
		return 0, err
	}

	count, ok := reply.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected script reply %T", ratelimit.ErrStoreInconsistent, reply)
	}

	return count, nil
}

// Compile-time check.
var _ ratelimit.AtomicStore = (*RateLimitRedisStore)(nil)
