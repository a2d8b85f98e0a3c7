package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the decision API.
func RegisterRoutes(api huma.API, checkHandler *CheckHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "check-rate-limit",
		Method:      http.MethodPost,
		Path:        "/v1/ratelimit/check",
		Summary:     "Check rate limit",
		Description: "Records one request for the identity and decides whether it fits the sliding window quota.",
		Tags:        []string{"Rate limiting"},
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, checkHandler.Check)
}
