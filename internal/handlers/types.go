package handlers

// CheckRequest is the request body for a rate limit check.
type CheckRequest struct {
	Body struct {
		Identity      string `doc:"Client identity the quota applies to"  example:"tenant-42" json:"identity"`
		Limit         uint32 `doc:"Requests allowed per window"           example:"100"       json:"limit"`
		WindowSeconds uint32 `doc:"Length of the sliding window, seconds" example:"60"        json:"windowSeconds"`
	}
}

// CheckResponse is the decision for a rate limit check.
type CheckResponse struct {
	Body struct {
		Admitted      bool   `doc:"Whether the request fits the quota"             json:"admitted"`
		Count         int64  `doc:"Requests in the window, including this one"     json:"count"`
		Limit         uint32 `doc:"Requests allowed per window"                    json:"limit"`
		Remaining     int64  `doc:"Requests still available in the current window" json:"remaining"`
		WindowSeconds uint32 `doc:"Length of the sliding window, seconds"          json:"windowSeconds"`
	}
}
