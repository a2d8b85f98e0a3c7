package metrics

import (
	"context"
	"time"

	"github.com/serroba/rate-limiter-go/internal/ratelimit"
)

// InstrumentedLimiter records metrics for every check of the wrapped limiter.
type InstrumentedLimiter struct {
	next    ratelimit.Checker
	metrics *Metrics
}

// Instrument decorates next with metrics.
func Instrument(next ratelimit.Checker, metrics *Metrics) *InstrumentedLimiter {
	return &InstrumentedLimiter{next: next, metrics: metrics}
}

func (l *InstrumentedLimiter) Allow(ctx context.Context, identity string, limit, windowSeconds uint32) (bool, error) {
	decision, err := l.Check(ctx, identity, limit, windowSeconds)

	return decision.Admitted, err
}

func (l *InstrumentedLimiter) Check(
	ctx context.Context,
	identity string,
	limit, windowSeconds uint32,
) (ratelimit.Decision, error) {
	start := time.Now()
	decision, err := l.next.Check(ctx, identity, limit, windowSeconds)
	l.metrics.Observe(ctx, decision, err, time.Since(start))

	return decision, err
}

var _ ratelimit.Checker = (*InstrumentedLimiter)(nil)
