package container

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/samber/do"
	"github.com/serroba/rate-limiter-go/internal/audit"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"go.uber.org/zap"
)

// PublisherGroupPackage provides the denial event publisher. Events go to a Redis stream
// when the Redis store is used and publishing is enabled, and are dropped otherwise.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client:     client.Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (messaging.Publish[audit.DenialEvent], error) {
		opts := do.MustInvoke[*Options](i)

		if !opts.PublishDenials || opts.Store != StoreRedis {
			return messaging.Discard[audit.DenialEvent](), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return audit.NewPublisher(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides the consumer group that persists denial events.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)
		auditStore := do.MustInvoke[audit.Store](i)

		hostname, _ := os.Hostname()

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client.Client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: opts.ConsumerGroup,
				Consumer:      hostname,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(audit.NewConsumer(subscriber, auditStore, logger))

		return group, nil
	})
}
