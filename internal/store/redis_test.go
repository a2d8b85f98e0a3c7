package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"github.com/serroba/rate-limiter-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*store.RateLimitRedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return store.NewRateLimitRedisStore(client), mr
}

func TestRateLimitRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sorted set operations", func(t *testing.T) {
		s, mr := newMiniRedisStore(t)

		require.NoError(t, s.AddMember(ctx, "key1", 10, "a"))
		require.NoError(t, s.AddMember(ctx, "key1", 20, "b"))
		require.NoError(t, s.AddMember(ctx, "key1", 30, "c"))
		require.NoError(t, s.RemoveRangeByScore(ctx, "key1", 0, 20))

		count, err := s.Cardinality(ctx, "key1")

		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		members, err := mr.ZMembers("key1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, members)
	})

	t.Run("sets expiry", func(t *testing.T) {
		s, mr := newMiniRedisStore(t)

		require.NoError(t, s.AddMember(ctx, "key1", 10, "a"))
		require.NoError(t, s.SetExpiry(ctx, "key1", 30*time.Second))

		assert.Equal(t, 30*time.Second, mr.TTL("key1"))

		mr.FastForward(30 * time.Second)
		assert.False(t, mr.Exists("key1"))
	})

	t.Run("record window runs as one script", func(t *testing.T) {
		s, mr := newMiniRedisStore(t)

		require.NoError(t, s.AddMember(ctx, "key1", 90_000, "old"))
		require.NoError(t, s.AddMember(ctx, "key1", 95_000, "edge"))
		require.NoError(t, s.AddMember(ctx, "key1", 99_000, "recent"))

		count, err := s.RecordWindow(ctx, ratelimit.WindowRecord{
			Key:      "key1",
			Score:    100_000,
			Member:   "now",
			PruneMax: 95_000,
			TTL:      5 * time.Second,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Equal(t, 5*time.Second, mr.TTL("key1"))
	})

	t.Run("connection failure surfaces an error", func(t *testing.T) {
		mr := miniredis.NewMiniRedis()
		require.NoError(t, mr.Start())

		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()

		mr.Close()

		s := store.NewRateLimitRedisStore(client)

		_, err := s.RecordWindow(ctx, ratelimit.WindowRecord{Key: "k", TTL: time.Second})
		assert.Error(t, err)

		_, err = s.Cardinality(ctx, "k")
		assert.Error(t, err)
	})
}

func TestRateLimitRedisStore_WithLimiter(t *testing.T) {
	t.Run("scenario over redis", func(t *testing.T) {
		s, mr := newMiniRedisStore(t)

		now := time.UnixMilli(1_700_000_000_000)
		clock := ratelimit.ClockFunc(func() time.Time { return now })
		limiter := ratelimit.NewSlidingWindowLimiter(s, ratelimit.WithClock(clock))

		ctx := context.Background()

		for i, want := range []bool{true, true, true, false} {
			allowed, err := limiter.Allow(ctx, "user-42", 3, 10)

			require.NoError(t, err)
			assert.Equal(t, want, allowed, "call %d", i)

			now = now.Add(time.Second)
		}

		now = now.Add(7 * time.Second) // t=11s

		d, err := limiter.Check(ctx, "user-42", 3, 10)

		require.NoError(t, err)
		assert.True(t, d.Admitted)
		assert.Equal(t, int64(3), d.Count)
		assert.Equal(t, 10*time.Second, mr.TTL(ratelimit.DefaultKeyPrefix+"user-42"))
	})

	t.Run("expiry is refreshed on every check", func(t *testing.T) {
		s, mr := newMiniRedisStore(t)

		now := time.UnixMilli(1_700_000_000_000)
		clock := ratelimit.ClockFunc(func() time.Time { return now })
		limiter := ratelimit.NewSlidingWindowLimiter(s, ratelimit.WithClock(clock))
		key := ratelimit.DefaultKeyPrefix + "active"

		ctx := context.Background()

		_, err := limiter.Check(ctx, "active", 5, 30)
		require.NoError(t, err)

		now = now.Add(20 * time.Second)
		mr.FastForward(20 * time.Second)

		_, err = limiter.Check(ctx, "active", 5, 30)
		require.NoError(t, err)

		now = now.Add(20 * time.Second)
		mr.FastForward(20 * time.Second)

		assert.True(t, mr.Exists(key), "second check should push expiry to t=50s")
		assert.Equal(t, 10*time.Second, mr.TTL(key))

		mr.FastForward(10 * time.Second)

		assert.False(t, mr.Exists(key))
	})

	t.Run("store outage maps to unavailable", func(t *testing.T) {
		mr := miniredis.NewMiniRedis()
		require.NoError(t, mr.Start())

		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()

		mr.Close()

		limiter := ratelimit.NewSlidingWindowLimiter(store.NewRateLimitRedisStore(client))

		allowed, err := limiter.Allow(context.Background(), "alice", 5, 10)

		assert.False(t, allowed)
		assert.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
	})

	t.Run("concurrent callers never overshoot", func(t *testing.T) {
		s, _ := newMiniRedisStore(t)
		limiter := ratelimit.NewSlidingWindowLimiter(s)

		const (
			callers = 40
			limit   = 7
		)

		var (
			wg       sync.WaitGroup
			admitted atomic.Int64
		)

		for range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				allowed, err := limiter.Allow(context.Background(), "shared", limit, 60)
				if err == nil && allowed {
					admitted.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(limit), admitted.Load())
	})
}
