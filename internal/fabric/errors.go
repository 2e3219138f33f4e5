package fabric

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrItemNotFound marks a display-name lookup that matched nothing in the
// workspace.
var ErrItemNotFound = errors.New("item not found")

// IsNotFound reports whether err stems from an item lookup that found
// nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// APIError is a non-success response from the Fabric API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, body)
}

// Retryable reports whether err looks transient: rate limiting, server-side
// failures, and network-level timeouts are worth another attempt, while
// auth, not-found, and conflict errors are not.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return true
		case apiErr.Status >= 500:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout", "timed out", "connection reset", "connection refused",
		"broken pipe", "i/o timeout", "temporary failure",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Hints suggests operator remedies for common failure classes. Modeled on
// the error triage the deployment workflow accumulated in production:
// most deployment failures trace back to a small set of causes.
func Hints(err error) []string {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "status 401") || strings.Contains(msg, "status 403"):
		return []string{
			"Check workspace permissions - Member or Admin role is required",
			"Verify the authentication token is valid",
		}
	case strings.Contains(msg, "not found") || strings.Contains(msg, "status 404"):
		return []string{
			"Verify the workspace ID is correct",
			"Check that all referenced items exist",
		}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return []string{
			"The operation may take longer - try increasing the timeout",
			"Check the network connection",
		}
	case strings.Contains(msg, "already exists") || strings.Contains(msg, "conflict") || strings.Contains(msg, "status 409"):
		return []string{
			"An item with this name already exists",
			"Use allow_non_empty_workspace if deploying over existing items is intentional",
		}
	case strings.Contains(msg, "capacity"):
		return []string{
			"Check that the Fabric capacity is running",
			"Verify the capacity has sufficient resources",
		}
	}
	return nil
}
