package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// RelayClient provides a client interface for the relay service.
type RelayClient interface {
	Generate(ctx context.Context, prompt string) (map[string]interface{}, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// HTTPRelayClient implements RelayClient against the relay's HTTP surface.
type HTTPRelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a relay client for the given base URL,
// e.g. "http://localhost:8090".
func NewHTTPClient(baseURL string) RelayClient {
	return &HTTPRelayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Generate relays a prompt and returns the backend's body as an open
// map. The relay's {"error": ...} payload is surfaced as a Go error.
func (c *HTTPRelayClient) Generate(ctx context.Context, prompt string) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if msg, ok := body["error"].(string); ok && msg != "" {
		return body, fmt.Errorf("relay error: %s", msg)
	}
	return body, nil
}

// Stats fetches the relay's in-process counters.
func (c *HTTPRelayClient) Stats(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *HTTPRelayClient) do(req *http.Request) (map[string]interface{}, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse relay response: %w", err)
	}
	return parsed, nil
}
