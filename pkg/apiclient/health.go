package apiclient

import "time"

// HealthResponse is the envelope of the health endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Ready returns the readiness of the server. An unready server yields an
// *APIError with status 503.
func (c *Client) Ready() (*HealthResponse, error) {
	return getResource[HealthResponse](c, "/health/ready")
}
