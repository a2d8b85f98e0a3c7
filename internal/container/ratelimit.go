package container

import (
	"fmt"

	"github.com/samber/do"
	"github.com/serroba/rate-limiter-go/internal/metrics"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"github.com/serroba/rate-limiter-go/internal/store"
	"go.uber.org/zap"
)

// Named limiters. The decision API and the client middleware keep their windows under
// distinct key prefixes, so an identity sent to the API never lands in a client's window.
const (
	APILimiter    = "limiter.api"
	ClientLimiter = "limiter.client"

	APIKeyPrefix    = "ratelimit:api:"
	ClientKeyPrefix = "ratelimit:http:"
)

// RateLimitPackage provides the limiter store and the instrumented limiters.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.AtomicStore, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Store {
		case StoreRedis:
			client := do.MustInvoke[*RedisClient](i)

			return store.NewRateLimitRedisStore(client.Client), nil
		case StoreMemory:
			return store.NewRateLimitMemoryStore(nil), nil
		default:
			return nil, fmt.Errorf("unknown store backend %q", opts.Store)
		}
	})

	do.ProvideNamed(injector, APILimiter, func(i *do.Injector) (ratelimit.Checker, error) {
		return newChecker(i, APIKeyPrefix)
	})

	do.ProvideNamed(injector, ClientLimiter, func(i *do.Injector) (ratelimit.Checker, error) {
		return newChecker(i, ClientKeyPrefix)
	})
}

// newChecker builds an instrumented limiter whose keys all start with prefix.
func newChecker(i *do.Injector, prefix string) (ratelimit.Checker, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*zap.Logger](i)

	limiterOpts := []ratelimit.Option{
		ratelimit.WithTimeout(opts.StoreTimeout()),
		ratelimit.WithKeyPrefix(prefix),
	}
	if opts.BestEffort {
		limiterOpts = append(limiterOpts, ratelimit.WithBestEffort())
	}

	limiter := ratelimit.NewSlidingWindowLimiter(do.MustInvoke[ratelimit.AtomicStore](i), limiterOpts...)

	logger.Info("rate limiter ready",
		zap.String("store", opts.Store),
		zap.String("key_prefix", prefix),
		zap.Bool("atomic", limiter.Atomic()),
		zap.Duration("timeout", opts.StoreTimeout()),
	)

	return metrics.Instrument(limiter, do.MustInvoke[*metrics.Metrics](i)), nil
}
