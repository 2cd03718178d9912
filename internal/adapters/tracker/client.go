// Package tracker implements the issue tracker port over an HTTP JSON bridge.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/triage/internal/ports/secondary"
	"github.com/example/triage/internal/version"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Config holds tracker bridge connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client files defect group issues through POST {BaseURL}/issues. The bridge
// is expected to update the existing issue when it already tracks the signature.
type Client struct {
	HTTPClient *http.Client
	Config     Config
}

// NewClient returns a client with the given config.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{Config: cfg, HTTPClient: &http.Client{Timeout: timeout}}
}

// CreateOrUpdateIssue sends the payload and returns the issue the tracker reports.
func (c *Client) CreateOrUpdateIssue(ctx context.Context, payload secondary.IssuePayload) (*secondary.IssueRef, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.BaseURL+"/issues", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("create issue for %s: %s: %s", payload.Signature, resp.Status, strings.TrimSpace(string(b)))
	}

	var ref secondary.IssueRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if ref.Key == "" {
		return nil, fmt.Errorf("create issue for %s: response has no issue key", payload.Signature)
	}
	return &ref, nil
}

// Ensure Client implements the interface
var _ secondary.IssueTracker = (*Client)(nil)
