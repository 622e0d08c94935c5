// Package gitsync notifies an external downstream git-sync service that a
// component's content needs to be mirrored from source to destination before a
// build is submitted against it (spec.md §4.6). Failures are logged and treated
// as non-fatal to the enclosing rebuild: a git-sync outage should not block
// submitting builds that don't need fresh content.
package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client posts sync requests to a distrogitsync endpoint.
type Client struct {
	Endpoint string
	Logger   *slog.Logger
}

// New returns a Client posting to endpoint.
func New(endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Endpoint: endpoint, Logger: logger}
}

// Sync requests that namespace/component be mirrored downstream. It returns an
// error only when the request could not even be made (bad endpoint
// configuration); a non-2xx response is logged and swallowed, matching
// spec.md §4.6's "log and continue" contract.
func (c *Client) Sync(ctx context.Context, ns, comp string) error {
	if c.Endpoint == "" {
		return fmt.Errorf("gitsync: no endpoint configured")
	}
	target, err := url.JoinPath(c.Endpoint, ns, comp)
	if err != nil {
		return fmt.Errorf("gitsync: build URL for %s/%s: %w", ns, comp, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("gitsync: build request for %s/%s: %w", ns, comp, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.Logger.Warn("git-sync request failed", "ns", ns, "comp", comp, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Logger.Warn("git-sync returned non-2xx", "ns", ns, "comp", comp, "status", resp.Status)
	}
	return nil
}
