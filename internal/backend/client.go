package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to an Ollama-style inference backend over HTTP.
// The backend is treated as a black box: the response body is decoded
// into an open map and handed back untyped.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// New creates a client for the given backend base URL and model.
// No client-side timeout: backend latency is unbounded by design.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (c *Client) Model() string {
	return c.model
}

// Generate sends a non-streaming generate call and returns the parsed
// body as an open map, along with the wall-clock latency of the call.
func (c *Client) Generate(ctx context.Context, prompt string) (map[string]interface{}, time.Duration, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, time.Since(start), fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, latency, fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, latency, fmt.Errorf("failed to parse backend response: %w", err)
	}

	return parsed, latency, nil
}

// Warmup issues a zero-content generate call to force the backend to
// load its model. Used once at startup by the memory prober.
func (c *Client) Warmup(ctx context.Context) error {
	_, _, err := c.Generate(ctx, "")
	return err
}
