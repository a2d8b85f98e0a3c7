// Package container wires the service with samber/do. Each *Package function registers the
// providers for one concern; services holding connections implement Shutdown so that
// injector.Shutdown releases them.
package container

import (
	"fmt"
	"math"
	"time"

	"github.com/serroba/rate-limiter-go/internal/middleware"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Options are the command line flags (and SERVICE_* environment variables) of the server.
type Options struct {
	Port           int    `default:"8888"            help:"Port to listen on"                                        short:"p"`
	RedisAddr      string `default:"localhost:6379"  help:"Redis server address"                                     short:"r"`
	RedisPassword  string `default:""                help:"Redis password"`
	RedisDB        int    `default:"0"               help:"Redis database number"`
	Store          string `default:"redis"           help:"Rate limit store backend: redis or memory"`
	StoreTimeoutMs int    `default:"2000"            help:"Per-check store timeout in milliseconds, 0 disables it"`
	BestEffort     bool   `default:"false"           help:"Run the four store steps separately instead of atomically"`
	ClientLimit    int    `default:"100"             help:"Requests each client may make per window"`
	ClientWindow   int    `default:"60"              help:"Client quota window in seconds"`
	FailOpen       bool   `default:"false"           help:"Let requests through when the store is unavailable"`
	PublishDenials bool   `default:"true"            help:"Publish denial events to the Redis stream"`
	LogFormat      string `default:"json"            help:"Log format: json or console"`
	DatabaseURL    string `default:""                help:"PostgreSQL URL for the denial audit store"`
	ConsumerGroup  string `default:"ratelimit-audit" help:"Redis stream consumer group of the audit consumer"`
}

// StoreTimeout returns the per-check store timeout.
func (o *Options) StoreTimeout() time.Duration {
	return time.Duration(o.StoreTimeoutMs) * time.Millisecond
}

// ClientQuota returns the middleware configuration derived from the options.
// Both the client limit and the window must be positive.
func (o *Options) ClientQuota() (middleware.RateLimitConfig, error) {
	limit, err := positiveUint32("client-limit", o.ClientLimit)
	if err != nil {
		return middleware.RateLimitConfig{}, err
	}

	window, err := positiveUint32("client-window", o.ClientWindow)
	if err != nil {
		return middleware.RateLimitConfig{}, err
	}

	return middleware.RateLimitConfig{
		Quota:    middleware.Quota{Limit: limit, WindowSeconds: window},
		FailOpen: o.FailOpen,
	}, nil
}

func positiveUint32(name string, v int) (uint32, error) {
	if v <= 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("invalid --%s %d: must be between 1 and %d", name, v, uint64(math.MaxUint32))
	}

	return uint32(v), nil
}
