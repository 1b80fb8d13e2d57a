package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider reads the current position from a hosted geolocation
// endpoint, typically a gateway in front of the platform's location
// service. The endpoint returns {"latitude": ..., "longitude": ...,
// "accuracy": ...}; a 403 means the user denied the position permission.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint
func NewHTTPProvider(endpoint string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		// The locator bounds the capture with its own context timeout; this
		// is a backstop for callers that pass an unbounded context
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type positionResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Position fetches the current device position
func (p *HTTPProvider) Position(ctx context.Context) (float64, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create position request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("position request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - parse below
	case http.StatusForbidden:
		return 0, 0, ErrPermissionDenied
	default:
		return 0, 0, fmt.Errorf("position endpoint returned HTTP %d", resp.StatusCode)
	}

	var pos positionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return 0, 0, fmt.Errorf("failed to parse position response: %w", err)
	}

	return pos.Latitude, pos.Longitude, nil
}
