package audit

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumer creates a consumer that persists every denial event to store.
func NewConsumer(subscriber message.Subscriber, store Store, logger *zap.Logger) *messaging.Consumer[DenialEvent] {
	return messaging.NewConsumer(subscriber, TopicDenied, store.SaveDenial, logger)
}

// NewPublisher creates a typed publish function for denial events.
func NewPublisher(publisher message.Publisher) messaging.Publish[DenialEvent] {
	return messaging.NewPublishFunc[DenialEvent](publisher, TopicDenied)
}
