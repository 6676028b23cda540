package authsdk

import (
	"context"
	"net/http"
)

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/livez", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness checks if the service can reach its database.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/readyz", "", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}
