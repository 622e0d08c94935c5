// Package contentresolver fetches autopackagelist component sets from a Content
// Resolver service, replacing a manually curated `components` block in config
// (spec.md §3/§9). It follows the package-level-client-with-timeout idiom the
// teacher uses for its own outbound HTTP calls, routed through the retry helper.
package contentresolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sgallagher/distrobuildsync/internal/retry"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client fetches package-name-list views from a Content Resolver instance.
type Client struct {
	BaseURL string
	Retry   retry.Config
}

// New returns a Client against baseURL using the given retry policy.
func New(baseURL string, cfg retry.Config) *Client {
	return &Client{BaseURL: baseURL, Retry: cfg}
}

// Fetch returns the union of component names listed under view for every
// (source, arch) pair, by requesting
// view-<source>-package-name-list--view-<view>--<arch>.txt for each combination
// and unioning non-empty lines.
func (c *Client) Fetch(ctx context.Context, view string, sources, arches []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	for _, source := range sources {
		for _, arch := range arches {
			names, err := c.fetchOne(ctx, source, view, arch)
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				result[n] = struct{}{}
			}
		}
	}
	return result, nil
}

func (c *Client) fetchOne(ctx context.Context, source, view, arch string) ([]string, error) {
	filename := fmt.Sprintf("view-%s-package-name-list--view-%s--%s.txt", source, view, arch)
	u, err := url.JoinPath(c.BaseURL, filename)
	if err != nil {
		return nil, fmt.Errorf("build content resolver URL: %w", err)
	}

	var body []byte
	err = retry.Do(ctx, c.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.NonRetryable(err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", u, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return retry.NonRetryable(fmt.Errorf("view not found at %s", u))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s: %w", u, err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return splitLines(body), nil
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if line := trimCR(data[start:i]); len(line) > 0 {
				lines = append(lines, string(line))
			}
			start = i + 1
		}
	}
	if line := trimCR(data[start:]); len(line) > 0 {
		lines = append(lines, string(line))
	}
	return lines
}

func trimCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}
	return b
}
