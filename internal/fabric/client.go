// Package fabric talks to the Microsoft Fabric REST API.
//
// It covers the slice of the API the deployment workflow needs: listing
// workspace items, triggering notebook jobs, and polling job status. The
// item push itself belongs to the wrapped deployment library and is not
// reimplemented here.
//
// Authentication is an injected capability: callers supply a TokenProvider
// rather than this package reaching into any host environment.
package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultAPIRoot is the public Fabric API endpoint.
	DefaultAPIRoot = "https://api.fabric.microsoft.com"

	// DefaultTimeout bounds individual API requests.
	DefaultTimeout = 60 * time.Second

	maxResponseSize = 16 * 1024 * 1024
)

// TokenProvider supplies a bearer token for Fabric API calls. In a hosted
// notebook environment this wraps the runtime's credential API; in tests
// and standalone runs a StaticTokenProvider is enough.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token.
type StaticTokenProvider string

// Token implements TokenProvider.
func (s StaticTokenProvider) Token(context.Context) (string, error) {
	return string(s), nil
}

// Client is a minimal Fabric REST API client scoped to one workspace.
type Client struct {
	APIRoot     string
	WorkspaceID string
	Tokens      TokenProvider
	HTTPClient  *http.Client

	// PollEvery overrides the job status polling interval (default 5s).
	PollEvery time.Duration
}

// NewClient creates a Fabric client for the given workspace.
func NewClient(apiRoot, workspaceID string, tokens TokenProvider) *Client {
	if apiRoot == "" {
		apiRoot = DefaultAPIRoot
	}
	return &Client{
		APIRoot:     apiRoot,
		WorkspaceID: workspaceID,
		Tokens:      tokens,
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	out := *c
	out.HTTPClient = httpClient
	return &out
}

// Item is one deployed artifact in a workspace.
type Item struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
}

// apiResponse carries the result of one request for error classification.
type apiResponse struct {
	status  int
	body    []byte
	headers http.Header
}

// do performs an authenticated request against the workspace API.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIRoot+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fabric API request failed: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading fabric API response: %w", err)
	}

	return &apiResponse{status: resp.StatusCode, body: body, headers: resp.Header}, nil
}

// ListItems returns every item in the workspace, optionally filtered by
// item type.
func (c *Client) ListItems(ctx context.Context, itemType string) ([]Item, error) {
	path := fmt.Sprintf("/v1/workspaces/%s/items", c.WorkspaceID)
	if itemType != "" {
		path += "?type=" + itemType
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, apiError("listing workspace items", resp)
	}

	var out struct {
		Value []Item `json:"value"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decoding item list: %w", err)
	}
	return out.Value, nil
}

// ResolveItemID finds an item's ID by display name and type.
func (c *Client) ResolveItemID(ctx context.Context, displayName, itemType string) (string, error) {
	items, err := c.ListItems(ctx, itemType)
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if item.DisplayName == displayName {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("%s %q in workspace %s: %w", itemType, displayName, c.WorkspaceID, ErrItemNotFound)
}

// GetItem fetches one item by ID, confirming it is accessible.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	path := fmt.Sprintf("/v1/workspaces/%s/items/%s", c.WorkspaceID, itemID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, apiError("fetching item "+itemID, resp)
	}

	var item Item
	if err := json.Unmarshal(resp.body, &item); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	return &item, nil
}

// apiError converts a non-success response into an error retaining the
// status code for classification.
func apiError(op string, resp *apiResponse) error {
	return &APIError{Op: op, Status: resp.status, Body: string(resp.body)}
}
