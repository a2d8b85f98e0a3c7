package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
)

// TopicDenied is the stream denial events are published to.
const TopicDenied = "ratelimit.denied"

// Sources of a denial.
const (
	SourceAPI        = "api"
	SourceMiddleware = "middleware"
)

// DenialEvent represents a request rejected by the limiter.
type DenialEvent struct {
	ID            string    `json:"id"`
	Identity      string    `json:"identity"`
	Limit         uint32    `json:"limit"`
	WindowSeconds uint32    `json:"windowSeconds"`
	Count         int64     `json:"count"`
	Source        string    `json:"source"`
	ClientIP      string    `json:"clientIp,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	DeniedAt      time.Time `json:"deniedAt"`
}

// NewDenialEvent builds an event from a denied decision.
func NewDenialEvent(decision ratelimit.Decision, source string) *DenialEvent {
	return &DenialEvent{
		ID:            uuid.NewString(),
		Identity:      decision.Identity,
		Limit:         decision.Limit,
		WindowSeconds: uint32(decision.Window / time.Second),
		Count:         decision.Count,
		Source:        source,
		DeniedAt:      decision.At.UTC(),
	}
}
