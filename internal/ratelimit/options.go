package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jaevor/go-nanoid"
)

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// MemberFunc builds the set member stored for a request recorded at now (Unix ms).
type MemberFunc func(now int64) string

var memberID, _ = nanoid.Standard(12)

// RandomMember stores "<now>-<random id>", so requests in the same millisecond are all counted.
func RandomMember(now int64) string {
	return fmt.Sprintf("%d-%s", now, memberID())
}

// TimestampMember stores the bare timestamp. Requests sharing a millisecond collapse into one record.
func TimestampMember(now int64) string {
	return strconv.FormatInt(now, 10)
}

// WithClock sets the clock used to timestamp requests.
func WithClock(clock Clock) Option {
	return func(l *SlidingWindowLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithTimeout bounds the store round trips of each check. Zero disables the limiter's own deadline.
func WithTimeout(d time.Duration) Option {
	return func(l *SlidingWindowLimiter) {
		l.timeout = d
	}
}

// WithKeyPrefix namespaces identity keys in the store.
func WithKeyPrefix(prefix string) Option {
	return func(l *SlidingWindowLimiter) {
		l.prefix = prefix
	}
}

// WithMemberFunc overrides how set members are built.
func WithMemberFunc(fn MemberFunc) Option {
	return func(l *SlidingWindowLimiter) {
		if fn != nil {
			l.member = fn
		}
	}
}

// WithBestEffort issues the four store operations as separate round trips even when the
// store supports atomic execution. Concurrent checks for one identity may then overshoot the limit.
func WithBestEffort() Option {
	return func(l *SlidingWindowLimiter) {
		l.bestEffort = true
	}
}
