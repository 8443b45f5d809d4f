package http

import (
	"fmt"
	"net/http"
	"time"

	"IntentCode/backend/go/internal/config"
	"IntentCode/backend/go/pkg/circuitbreaker"
)

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient creates a new Client with a circuit breaker configured.
func NewClient(cfg config.CircuitBreakerConfig, timeout time.Duration) (*Client, error) {
	if !cfg.Enabled {
		return &Client{httpClient: &http.Client{Timeout: timeout}}, nil
	}

	breaker, err := createCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}, breaker: breaker}, nil
}

// NewBreakerClient creates a Client guarded by a breaker built from settings.
// It serves callers outside this module's config tree, such as the CLI.
func NewBreakerClient(settings circuitbreaker.Settings, timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}, breaker: circuitbreaker.New(settings)}
}

// Do executes an HTTP request with circuit breaker protection.
// It considers status codes >= 500 as failures; the response is still returned to the caller then.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.breaker.Do(func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}
		return nil
	})
	if resp != nil && err != nil && resp.StatusCode >= http.StatusInternalServerError {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
