package fabric

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ExpectedItem names an item that must exist after deployment.
type ExpectedItem struct {
	Name string
	Type string
}

// ItemCheck is the accessibility result for one deployed item.
type ItemCheck struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ID         string `json:"id"`
	Accessible bool   `json:"accessible"`
	Error      string `json:"error,omitempty"`
}

// ValidationResult aggregates post-deployment checks.
type ValidationResult struct {
	Timestamp    time.Time      `json:"timestamp"`
	WorkspaceID  string         `json:"workspace_id"`
	Passed       bool           `json:"passed"`
	ItemsByType  map[string]int `json:"items_by_type,omitempty"`
	Items        []ItemCheck    `json:"items,omitempty"`
	MissingItems []string       `json:"missing_items,omitempty"`
	FailedCount  int            `json:"failed_count"`
	Errors       []string       `json:"errors,omitempty"`
}

// ValidateWorkspaceEmpty verifies the workspace contains no items other
// than allowedNames (typically the orchestrating notebook itself). It
// returns the offending items in the error so callers can present them.
func (c *Client) ValidateWorkspaceEmpty(ctx context.Context, allowedNames ...string) error {
	items, err := c.ListItems(ctx, "")
	if err != nil {
		return fmt.Errorf("listing workspace items: %w", err)
	}

	allowed := make(map[string]bool, len(allowedNames))
	for _, name := range allowedNames {
		allowed[name] = true
	}

	var existing []string
	for _, item := range items {
		if !allowed[item.DisplayName] {
			existing = append(existing, fmt.Sprintf("%s (%s)", item.DisplayName, item.Type))
		}
	}
	if len(existing) > 0 {
		sort.Strings(existing)
		return fmt.Errorf("workspace %s contains %d existing item(s): %v; "+
			"deploying to a non-empty workspace requires allow_non_empty_workspace",
			c.WorkspaceID, len(existing), existing)
	}
	return nil
}

// ValidateDeployment checks that deployed items exist and are accessible.
// Expected items may be nil, in which case every item found in the
// workspace is checked.
func (c *Client) ValidateDeployment(ctx context.Context, expected []ExpectedItem) (*ValidationResult, error) {
	result := &ValidationResult{
		Timestamp:   time.Now().UTC(),
		WorkspaceID: c.WorkspaceID,
		Passed:      true,
		ItemsByType: make(map[string]int),
	}

	items, err := c.ListItems(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing workspace items: %w", err)
	}
	if len(items) == 0 {
		result.Passed = false
		result.Errors = append(result.Errors, "no items found in workspace")
		return result, nil
	}

	byName := make(map[string]Item, len(items))
	for _, item := range items {
		result.ItemsByType[item.Type]++
		byName[item.DisplayName+"/"+item.Type] = item
	}

	for _, exp := range expected {
		if _, ok := byName[exp.Name+"/"+exp.Type]; !ok {
			result.Passed = false
			result.MissingItems = append(result.MissingItems, fmt.Sprintf("%s (%s)", exp.Name, exp.Type))
		}
	}

	// Accessibility: each item must be individually fetchable.
	for _, item := range items {
		check := ItemCheck{Name: item.DisplayName, Type: item.Type, ID: item.ID, Accessible: true}
		if _, err := c.GetItem(ctx, item.ID); err != nil {
			check.Accessible = false
			check.Error = err.Error()
			result.FailedCount++
			result.Passed = false
		}
		result.Items = append(result.Items, check)
	}

	return result, nil
}
