package store

import (
	"context"

	"github.com/serroba/rate-limiter-go/internal/audit"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of audit.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op audit store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveDenial(_ context.Context, event *audit.DenialEvent) error {
	n.logger.Info("denial event received",
		zap.String("id", event.ID),
		zap.String("identity", event.Identity),
		zap.Uint32("limit", event.Limit),
		zap.Int64("count", event.Count),
		zap.String("source", event.Source),
		zap.Time("deniedAt", event.DeniedAt),
	)

	return nil
}

var _ audit.Store = (*Noop)(nil)
