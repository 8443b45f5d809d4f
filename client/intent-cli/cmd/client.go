package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"IntentCode/backend/go/pkg/circuitbreaker"
	httpclient "IntentCode/backend/go/pkg/http"
)

// project mirrors the fields of a project the CLI prints.
type project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Files     []file    `json:"files"`
	UpdatedAt time.Time `json:"updated_at"`
}

// file is the wire form of a project file.
type file struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	IsDirectory bool   `json:"isDirectory,omitempty"`
	Content     string `json:"content,omitempty"`
}

// event is a change notification pushed over the WebSocket.
type event struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// apiClient talks to the project service REST API.
type apiClient struct {
	base  string
	token string
	http  *httpclient.Client
}

func newAPIClient(base, token string, breaker circuitbreaker.Settings, timeout time.Duration) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  httpclient.NewBreakerClient(breaker, timeout),
	}
}

// do sends body as JSON and decodes a JSON response into out when out is not nil.
func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// wsURL converts the base URL into the WebSocket endpoint for change events.
func (c *apiClient) wsURL() string {
	u := c.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v1/ws?access_token=" + c.token
}
