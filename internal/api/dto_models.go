package api

import "github.com/storahq/stora/internal/core"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // User-facing message
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// DashboardResponse is the one-shot dashboard view.
type DashboardResponse struct {
	State     core.DashboardState `json:"state"`
	Bootstrap core.BootstrapState `json:"bootstrap"`
}

// UploadProgress is streamed while an upload is in flight.
type UploadProgress struct {
	Sent    int64 `json:"sent"`
	Total   int64 `json:"total"`
	Percent int   `json:"percent"`
}

// CheckoutResponse carries the payment link of the pro plan.
type CheckoutResponse struct {
	URL string `json:"url"`
}
