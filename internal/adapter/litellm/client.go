// Package litellm provides an HTTP client for the LiteLLM Proxy and an answer
// generator on top of its OpenAI-compatible chat completions endpoint.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/answerdesk/internal/resilience"
)

// HealthReport is the detailed /health response.
type HealthReport struct {
	HealthyEndpoints   []EndpointHealth `json:"healthy_endpoints"`
	UnhealthyEndpoints []EndpointHealth `json:"unhealthy_endpoints"`
	HealthyCount       int              `json:"healthy_count"`
	UnhealthyCount     int              `json:"unhealthy_count"`
}

// EndpointHealth represents the health of a single model endpoint.
type EndpointHealth struct {
	Model   string `json:"model"`
	APIBase string `json:"api_base,omitempty"`
	Error   string `json:"error,omitempty"`
}

// APIError is a non-2xx response from the proxy.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("litellm API error %d: %s", e.Status, e.Body)
}

// Client talks to the LiteLLM Proxy.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new LiteLLM client. A zero timeout selects 30s.
func NewClient(baseURL, masterKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		masterKey:  masterKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Health checks if LiteLLM is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

// HealthDetailed returns per-endpoint health. Counts missing from the
// response are derived from the endpoint lists.
func (c *Client) HealthDetailed(ctx context.Context) (*HealthReport, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	var report HealthReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal health: %w", err)
	}
	if report.HealthyCount == 0 {
		report.HealthyCount = len(report.HealthyEndpoints)
	}
	if report.UnhealthyCount == 0 {
		report.UnhealthyCount = len(report.UnhealthyEndpoints)
	}
	return &report, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Body: string(data)}
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.ExecuteContext(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
