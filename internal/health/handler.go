package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/rate-limiter-go/internal/middleware"
)

// Dependency states reported by Check.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	redis Checker
}

// NewHandler creates a new health handler. A nil checker reports Redis as disabled,
// which is the case for the in-memory store backend.
func NewHandler(redis Checker) *Handler {
	return &Handler{redis: redis}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status string `json:"status"`
		Redis  string `json:"redis"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"

	switch {
	case h.redis == nil:
		resp.Body.Redis = StatusDisabled
	case h.redis.Ping(ctx) != nil:
		resp.Body.Redis = StatusUnhealthy
		resp.Body.Status = "degraded"
	default:
		resp.Body.Redis = StatusHealthy
	}

	return resp, nil
}

// RegisterRoutes registers health check routes. Health checks are not rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			middleware.MetadataKey: middleware.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
