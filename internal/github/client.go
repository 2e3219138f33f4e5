// Package github downloads repository content from the GitHub REST API.
//
// Deployment sources live in GitHub repositories; this package fetches a
// repository snapshot as a zipball, extracts it (optionally a single folder)
// to local storage, and downloads individual files such as deployment
// configuration. It intentionally covers only the content endpoints the
// deployment workflow needs.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultRawEndpoint serves raw file content.
	DefaultRawEndpoint = "https://raw.githubusercontent.com"

	// DefaultTimeout is the default HTTP request timeout. Workspace
	// repository zipballs are small but the API can be slow to stream.
	DefaultTimeout = 120 * time.Second

	// MaxRetries is the maximum number of retries for failed requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// maxResponseSize caps downloads at 512 MiB to bound memory use when
	// extracting zipballs from memory.
	maxResponseSize = 512 * 1024 * 1024
)

// Sentinel errors for status-code classes callers branch on.
var (
	// ErrNotFound means the repository, branch, or path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied means authentication failed or is required.
	ErrAccessDenied = errors.New("access denied")
)

// Client downloads content from a single GitHub repository.
type Client struct {
	Token      string       // GitHub personal access token (empty for public repos)
	Owner      string       // Repository owner (user or org)
	Repo       string       // Repository name
	Branch     string       // Branch or ref to download (default: main)
	BaseURL    string       // API base URL (default: https://api.github.com)
	RawURL     string       // Raw content base URL (default: https://raw.githubusercontent.com)
	HTTPClient *http.Client // Optional custom HTTP client
}

// NewClient creates a new GitHub content client for one repository branch.
func NewClient(token, owner, repo, branch string) *Client {
	if branch == "" {
		branch = "main"
	}
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		Branch:  branch,
		BaseURL: DefaultAPIEndpoint,
		RawURL:  DefaultRawEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	out := *c
	out.HTTPClient = httpClient
	return &out
}

// WithBaseURL returns a new client with custom API and raw endpoints
// (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL, rawURL string) *Client {
	out := *c
	out.BaseURL = baseURL
	out.RawURL = rawURL
	return &out
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// get performs an authenticated GET with retry and rate-limit handling.
func (c *Client) get(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		if c.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Token)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		// Rate limiting: GitHub uses 403 with X-RateLimit-Remaining: 0, or 429.
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			delay := RetryDelay * time.Duration(1<<attempt)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = fmt.Errorf("rate limited (attempt %d/%d)", attempt+1, MaxRetries+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s@%s: repository, branch, or path: %w", c.repoPath(), c.Branch, ErrNotFound)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%s: a token is required for private repositories: %w", c.repoPath(), ErrAccessDenied)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("GitHub API error: %s (status %d)", truncate(string(body), 200), resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
