package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/rate-limiter-go/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory implementation of ratelimit.AtomicStore.
// It shares state only within one process.
type RateLimitMemoryStore struct {
	mu    sync.Mutex
	clock ratelimit.Clock
	sets  map[string]*memorySet
}

type memorySet struct {
	members   map[string]int64 // member -> score
	expiresAt time.Time        // zero means no expiry
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
// The clock drives key expiry; nil uses the system clock.
func NewRateLimitMemoryStore(clock ratelimit.Clock) *RateLimitMemoryStore {
	if clock == nil {
		clock = ratelimit.SystemClock{}
	}

	return &RateLimitMemoryStore{
		clock: clock,
		sets:  make(map[string]*memorySet),
	}
}

func (s *RateLimitMemoryStore) AddMember(ctx context.Context, key string, score int64, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.add(key, score, member)

	return nil
}

func (s *RateLimitMemoryStore) RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeRange(key, minScore, maxScore)

	return nil
}

func (s *RateLimitMemoryStore) Cardinality(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.card(key), nil
}

func (s *RateLimitMemoryStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire(key, ttl)

	return nil
}

// RecordWindow performs the add/prune/count/expire sequence under a single lock.
func (s *RateLimitMemoryStore) RecordWindow(ctx context.Context, rec ratelimit.WindowRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.add(rec.Key, rec.Score, rec.Member)
	s.removeRange(rec.Key, 0, rec.PruneMax)
	count := s.card(rec.Key)
	s.expire(rec.Key, rec.TTL)

	return count, nil
}

// Size returns the number of live keys.
func (s *RateLimitMemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for key := range s.sets {
		if s.live(key) != nil {
			n++
		}
	}

	return n
}

// live returns the set at key, dropping it first if its TTL has passed.
func (s *RateLimitMemoryStore) live(key string) *memorySet {
	set, ok := s.sets[key]
	if !ok {
		return nil
	}

	if !set.expiresAt.IsZero() && !s.clock.Now().Before(set.expiresAt) {
		delete(s.sets, key)

		return nil
	}

	return set
}

func (s *RateLimitMemoryStore) add(key string, score int64, member string) {
	set := s.live(key)
	if set == nil {
		set = &memorySet{members: make(map[string]int64)}
		s.sets[key] = set
	}

	set.members[member] = score
}

func (s *RateLimitMemoryStore) removeRange(key string, minScore, maxScore int64) {
	set := s.live(key)
	if set == nil {
		return
	}

	for member, score := range set.members {
		if score >= minScore && score <= maxScore {
			delete(set.members, member)
		}
	}

	if len(set.members) == 0 {
		delete(s.sets, key)
	}
}

func (s *RateLimitMemoryStore) card(key string) int64 {
	set := s.live(key)
	if set == nil {
		return 0
	}

	return int64(len(set.members))
}

func (s *RateLimitMemoryStore) expire(key string, ttl time.Duration) {
	set := s.live(key)
	if set == nil {
		return
	}

	if ttl <= 0 {
		delete(s.sets, key)

		return
	}

	set.expiresAt = s.clock.Now().Add(ttl)
}

// Compile-time check.
var _ ratelimit.AtomicStore = (*RateLimitMemoryStore)(nil)
