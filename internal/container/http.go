package container

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/rate-limiter-go/internal/audit"
	"github.com/serroba/rate-limiter-go/internal/handlers"
	"github.com/serroba/rate-limiter-go/internal/health"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"github.com/serroba/rate-limiter-go/internal/metrics"
	"github.com/serroba/rate-limiter-go/internal/middleware"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the huma API with all routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)

		quota, err := opts.ClientQuota()
		if err != nil {
			return nil, err
		}

		logger := do.MustInvoke[*zap.Logger](i)
		apiLimiter := do.MustInvokeNamed[ratelimit.Checker](i, APILimiter)
		clientLimiter := do.MustInvokeNamed[ratelimit.Checker](i, ClientLimiter)
		publish := do.MustInvoke[messaging.Publish[audit.DenialEvent]](i)

		router.Method(http.MethodGet, "/metrics", do.MustInvoke[*metrics.Metrics](i).Handler())

		api := humachi.New(router, huma.DefaultConfig("Rate Limiter", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))
		api.UseMiddleware(middleware.RateLimiter(api, clientLimiter, quota, publish, logger))

		var redisChecker health.Checker
		if opts.Store == StoreRedis {
			redisChecker = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
		}

		health.RegisterRoutes(api, health.NewHandler(redisChecker))
		handlers.RegisterRoutes(api, handlers.NewCheckHandler(apiLimiter, publish, logger))

		return api, nil
	})
}
