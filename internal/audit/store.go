package audit

import "context"

// Store defines the interface for persisting denial events.
type Store interface {
	SaveDenial(ctx context.Context, event *DenialEvent) error
}
