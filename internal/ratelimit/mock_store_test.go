package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serroba/rate-limiter-go/internal/ratelimit"
)

var errMock = errors.New("mock error")

// fakeClock is a settable clock for deterministic window arithmetic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// recordingStore is a non-atomic Store that logs each call and can be told to fail.
type recordingStore struct {
	mu       sync.Mutex
	calls    []string
	keys     []string
	ranges   [][2]int64
	ttls     []time.Duration
	count    int64
	failOn   string
	blockCtx bool
}

func (s *recordingStore) note(op, key string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.keys = append(s.keys, key)
	s.mu.Unlock()

	if s.failOn == op {
		return errMock
	}

	return nil
}

func (s *recordingStore) AddMember(ctx context.Context, key string, _ int64, _ string) error {
	if s.blockCtx {
		<-ctx.Done()

		return ctx.Err()
	}

	return s.note("add", key)
}

func (s *recordingStore) RemoveRangeByScore(_ context.Context, key string, minScore, maxScore int64) error {
	s.mu.Lock()
	s.ranges = append(s.ranges, [2]int64{minScore, maxScore})
	s.mu.Unlock()

	return s.note("remove", key)
}

func (s *recordingStore) Cardinality(_ context.Context, key string) (int64, error) {
	if err := s.note("card", key); err != nil {
		return 0, err
	}

	return s.count, nil
}

func (s *recordingStore) SetExpiry(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	s.ttls = append(s.ttls, ttl)
	s.mu.Unlock()

	return s.note("expire", key)
}

// scriptedStore is an AtomicStore that returns a canned reply from RecordWindow.
type scriptedStore struct {
	recordingStore
	records []ratelimit.WindowRecord
	reply   int64
	err     error
}

func (s *scriptedStore) RecordWindow(_ context.Context, rec ratelimit.WindowRecord) (int64, error) {
	s.records = append(s.records, rec)

	return s.reply, s.err
}
