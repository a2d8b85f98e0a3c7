package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultKeyPrefix namespaces identity keys in the shared store.
	DefaultKeyPrefix = "ratelimit:"
	// DefaultTimeout bounds the store round trips of a single check.
	DefaultTimeout = 2 * time.Second
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow records a request for identity and reports whether it fits in
	// limit requests per rolling window of windowSeconds.
	Allow(ctx context.Context, identity string, limit, windowSeconds uint32) (allowed bool, err error)
}

// Checker is a Limiter that can also report the full decision.
type Checker interface {
	Limiter
	Check(ctx context.Context, identity string, limit, windowSeconds uint32) (Decision, error)
}

// Decision is the outcome of one check.
type Decision struct {
	Identity string
	Admitted bool
	// Count is the number of records in the window after this request was recorded.
	Count  int64
	Limit  uint32
	Window time.Duration
	At     time.Time
}

// Remaining returns how many more requests fit in the current window.
func (d Decision) Remaining() int64 {
	if r := int64(d.Limit) - d.Count; r > 0 {
		return r
	}

	return 0
}

// SlidingWindowLimiter implements rate limiting using a sliding window log kept in a shared store.
//
// Every valid check records the request before deciding, so a denied request still
// occupies a slot in the window. Callers must back off instead of retrying in a loop.
type SlidingWindowLimiter struct {
	store      Store
	clock      Clock
	member     MemberFunc
	prefix     string
	timeout    time.Duration
	bestEffort bool
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(store Store, opts ...Option) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		store:   store,
		clock:   SystemClock{},
		member:  RandomMember,
		prefix:  DefaultKeyPrefix,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Atomic reports whether checks run as a single store operation.
func (l *SlidingWindowLimiter) Atomic() bool {
	_, ok := l.store.(AtomicStore)

	return ok && !l.bestEffort
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, identity string, limit, windowSeconds uint32) (bool, error) {
	d, err := l.Check(ctx, identity, limit, windowSeconds)
	if err != nil {
		return false, err
	}

	return d.Admitted, nil
}

// Check records the request and returns the decision.
func (l *SlidingWindowLimiter) Check(
	ctx context.Context, identity string, limit, windowSeconds uint32,
) (Decision, error) {
	window := time.Duration(windowSeconds) * time.Second
	d := Decision{Identity: identity, Limit: limit, Window: window}

	if err := validate(identity, limit, windowSeconds); err != nil {
		return d, err
	}

	d.At = l.clock.Now()
	now := d.At.UnixMilli()

	rec := WindowRecord{
		Key:      l.prefix + identity,
		Score:    now,
		Member:   l.member(now),
		PruneMax: now - window.Milliseconds(),
		TTL:      window,
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	count, err := l.record(ctx, rec)
	if err != nil {
		return d, err
	}

	if count < 0 {
		return d, storeError("cardinality", rec.Key, inconsistentCount(count))
	}

	d.Count = count
	d.Admitted = count <= int64(limit)

	return d, nil
}

func (l *SlidingWindowLimiter) record(ctx context.Context, rec WindowRecord) (int64, error) {
	if atomic, ok := l.store.(AtomicStore); ok && !l.bestEffort {
		count, err := atomic.RecordWindow(ctx, rec)
		if err != nil {
			return 0, storeError("record window", rec.Key, err)
		}

		return count, nil
	}

	// Four separate round trips: concurrent callers can each miss the others' inserts.
	if err := l.store.AddMember(ctx, rec.Key, rec.Score, rec.Member); err != nil {
		return 0, storeError("add member", rec.Key, err)
	}

	if err := l.store.RemoveRangeByScore(ctx, rec.Key, 0, rec.PruneMax); err != nil {
		return 0, storeError("remove range", rec.Key, err)
	}

	count, err := l.store.Cardinality(ctx, rec.Key)
	if err != nil {
		return 0, storeError("cardinality", rec.Key, err)
	}

	if err := l.store.SetExpiry(ctx, rec.Key, rec.TTL); err != nil {
		return 0, storeError("set expiry", rec.Key, err)
	}

	return count, nil
}

func validate(identity string, limit, windowSeconds uint32) error {
	switch {
	case identity == "":
		return &InputError{Field: "identity", Message: "must not be empty"}
	case windowSeconds == 0:
		return &InputError{Field: "windowSeconds", Message: "must be greater than zero"}
	case limit == 0:
		return &InputError{Field: "limit", Message: "must be greater than zero"}
	}

	return nil
}

// Compile-time check.
var _ Checker = (*SlidingWindowLimiter)(nil)
