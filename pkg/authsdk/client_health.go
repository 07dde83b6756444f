package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNotReady is returned by GetReadiness when the server answers 503.
// The report is still returned so callers can see which check failed.
var ErrNotReady = errors.New("authsdk: service not ready")

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.probe(ctx, "/livez")
}

// GetReadiness calls /readyz, which also checks the database and the code
// backend.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.probe(ctx, "/readyz")
}

func (c *SDKClient) probe(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var report HealthResponse
	if resp.StatusCode != http.StatusServiceUnavailable {
		if err := decodeJSON(resp, &report, http.StatusOK); err != nil {
			return nil, err
		}
		return &report, nil
	}

	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&report); err != nil || report.Status == "" {
		return nil, fmt.Errorf("%w: %s answered 503 without a report", ErrNotReady, path)
	}
	return &report, ErrNotReady
}
