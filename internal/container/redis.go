package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

// RedisClient wraps redis.Client so the injector closes it on shutdown.
type RedisClient struct {
	*redis.Client
}

// Shutdown closes the client.
func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// RedisPackage provides the Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})}, nil
	})
}
