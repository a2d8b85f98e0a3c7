package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/rate-limiter-go/internal/audit"
	"github.com/serroba/rate-limiter-go/internal/messaging"
	"github.com/serroba/rate-limiter-go/internal/ratelimit"
	"go.uber.org/zap"
)

// CheckHandler answers rate limit decisions for arbitrary identities.
type CheckHandler struct {
	limiter       ratelimit.Checker
	publishDenial messaging.Publish[audit.DenialEvent]
	logger        *zap.Logger
}

// NewCheckHandler creates a new check handler.
func NewCheckHandler(
	limiter ratelimit.Checker,
	publishDenial messaging.Publish[audit.DenialEvent],
	logger *zap.Logger,
) *CheckHandler {
	return &CheckHandler{
		limiter:       limiter,
		publishDenial: publishDenial,
		logger:        logger,
	}
}

// Check records one request for the identity and reports whether it is admitted.
// A denial is a regular response, not an error.
func (h *CheckHandler) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	decision, err := h.limiter.Check(ctx, req.Body.Identity, req.Body.Limit, req.Body.WindowSeconds)
	if err != nil {
		return nil, h.limiterError(req.Body.Identity, err)
	}

	if !decision.Admitted {
		meta := RequestMetaFromContext(ctx)
		event := audit.NewDenialEvent(decision, audit.SourceAPI)
		event.ClientIP = meta.ClientIP
		event.UserAgent = meta.UserAgent

		if err := h.publishDenial(ctx, event); err != nil {
			h.logger.Error("failed to publish denial event",
				zap.String("identity", decision.Identity),
				zap.Error(err),
			)
		}
	}

	resp := &CheckResponse{}
	resp.Body.Admitted = decision.Admitted
	resp.Body.Count = decision.Count
	resp.Body.Limit = decision.Limit
	resp.Body.Remaining = decision.Remaining()
	resp.Body.WindowSeconds = req.Body.WindowSeconds

	return resp, nil
}

func (h *CheckHandler) limiterError(identity string, err error) error {
	switch {
	case errors.Is(err, ratelimit.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, ratelimit.ErrStoreUnavailable):
		h.logger.Warn("rate limit store unavailable", zap.String("identity", identity), zap.Error(err))

		return huma.Error503ServiceUnavailable("rate limit store unavailable")
	default:
		h.logger.Error("rate limit check failed", zap.String("identity", identity), zap.Error(err))

		return huma.Error500InternalServerError("rate limit check failed")
	}
}
