// Package platform is the gateway to the analytics platform's declarative
// REST API. Every operation has create-or-update semantics so a provisioning
// run against an existing tenant converges instead of failing.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to one analytics platform instance.
type Client struct {
	host   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a platform client. The token is logged in masked form
// only.
func NewClient(host, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to analytics platform", "host", host, "token", maskToken(token))
	return &Client{
		host:   strings.TrimRight(host, "/"),
		token:  token,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// maskToken hides all but the last four characters of a token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("#", len(token))
	}
	return strings.Repeat("#", len(token)-4) + token[len(token)-4:]
}

// putJSON performs an authenticated PUT with a JSON body.
func (c *Client) putJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("platform returned %d for %s: %s", resp.StatusCode, path, string(respBody))
	}
	return nil
}

// getJSON performs an authenticated GET and decodes the response.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("platform returned %d for %s: %s", resp.StatusCode, path, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
