package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeycumines/go-catrate"
	"github.com/serroba/rate-limiter-go/internal/audit"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"go.uber.org/zap"
)

// Headers written by RateLimiter.
const (
	HeaderClientID  = "X-Client-ID"
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration.
// It is attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Disabled skips rate limiting for the endpoint.
	Disabled bool
}

// Quota is the request budget applied to every client.
type Quota struct {
	Limit         uint32
	WindowSeconds uint32
}

// RateLimitConfig configures RateLimiter.
type RateLimitConfig struct {
	Quota Quota
	// FailOpen passes requests through when the store is unavailable instead of answering 503.
	FailOpen bool
}

// RateLimiter returns a Huma middleware that limits requests per client.
//
// The client is identified by the X-Client-ID header, or by a hash of client IP and
// User-Agent when the header is absent. Denied requests get 429 and are published as
// denial events.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Checker,
	cfg RateLimitConfig,
	publish messaging.Publish[audit.DenialEvent],
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	// one outage warning per error kind every 10s
	outages := catrate.NewLimiter(map[time.Duration]int{10 * time.Second: 1})

	return func(ctx huma.Context, next func(huma.Context)) {
		if endpoint := GetEndpointConfig(ctx); endpoint != nil && endpoint.Disabled {
			next(ctx)

			return
		}

		identity := clientKey(ctx)

		decision, err := limiter.Check(ctx.Context(), identity, cfg.Quota.Limit, cfg.Quota.WindowSeconds)
		if err != nil {
			handleLimiterError(api, ctx, cfg, err, outages, logger, next)

			return
		}

		ctx.SetHeader(HeaderLimit, strconv.FormatUint(uint64(decision.Limit), 10))
		ctx.SetHeader(HeaderRemaining, strconv.FormatInt(decision.Remaining(), 10))

		if !decision.Admitted {
			handleDenied(api, ctx, decision, publish, logger)

			return
		}

		next(ctx)
	}
}

func handleLimiterError(
	api huma.API,
	ctx huma.Context,
	cfg RateLimitConfig,
	err error,
	outages *catrate.Limiter,
	logger *zap.Logger,
	next func(huma.Context),
) {
	switch {
	case errors.Is(err, ratelimit.ErrStoreUnavailable):
		if _, ok := outages.Allow(ratelimit.ErrStoreUnavailable); ok {
			logger.Warn("rate limit store unavailable",
				zap.Bool("fail_open", cfg.FailOpen),
				zap.String("path", operationPath(ctx)),
				zap.Error(err),
			)
		}

		if cfg.FailOpen {
			next(ctx)

			return
		}

		_ = huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "rate limiter unavailable")
	case errors.Is(err, ratelimit.ErrInvalidInput):
		logger.Error("rate limiter misconfigured", zap.Error(err))
		_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")
	default:
		if _, ok := outages.Allow(ratelimit.ErrStoreInconsistent); ok {
			logger.Error("rate limit check failed", zap.String("path", operationPath(ctx)), zap.Error(err))
		}

		_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")
	}
}

func handleDenied(
	api huma.API,
	ctx huma.Context,
	decision ratelimit.Decision,
	publish messaging.Publish[audit.DenialEvent],
	logger *zap.Logger,
) {
	event := audit.NewDenialEvent(decision, audit.SourceMiddleware)
	event.ClientIP = clientIP(ctx)
	event.UserAgent = ctx.Header("User-Agent")

	if err := publish(ctx.Context(), event); err != nil {
		logger.Warn("failed to publish denial event", zap.String("identity", decision.Identity), zap.Error(err))
	}

	logger.Debug("rate limit exceeded",
		zap.String("path", operationPath(ctx)),
		zap.String("method", ctx.Method()),
		zap.Int64("count", decision.Count),
		zap.Uint32("limit", decision.Limit),
		zap.String("client_ip", event.ClientIP),
	)

	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded")
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// clientKey identifies the caller: the X-Client-ID header, else a hash of IP and User-Agent.
func clientKey(ctx huma.Context) string {
	if id := ctx.Header(HeaderClientID); id != "" {
		return "client:" + id
	}

	hash := sha256.Sum256([]byte(clientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return "anon:" + hex.EncodeToString(hash[:])
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
