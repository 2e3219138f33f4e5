package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notebook job polling defaults.
const (
	DefaultJobTimeout  = time.Hour
	DefaultPollEvery   = 5 * time.Second
	jobTypeRunNotebook = "RunNotebook"
)

// JobRun is the handle returned when a notebook job is triggered.
type JobRun struct {
	JobID        string `json:"job_id"`
	NotebookID   string `json:"notebook_id"`
	NotebookName string `json:"notebook_name"`
	WorkspaceID  string `json:"workspace_id"`
	Location     string `json:"location,omitempty"`
}

// JobStatus is the state of a job instance.
type JobStatus struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StartTimeUTC  string `json:"startTimeUtc,omitempty"`
	EndTimeUTC    string `json:"endTimeUtc,omitempty"`
	FailureReason any    `json:"failureReason,omitempty"`
}

// Terminal reports whether the job has finished (successfully or not).
func (s *JobStatus) Terminal() bool {
	switch s.Status {
	case "Completed", "Failed", "Cancelled", "Canceled", "Deduped":
		return true
	}
	return false
}

// Succeeded reports whether the job finished successfully.
func (s *JobStatus) Succeeded() bool { return s.Status == "Completed" }

// RunNotebook triggers a notebook job by display name and returns without
// waiting for completion. The job ID comes from the Location header of the
// 202 response, with a JSON body id as fallback.
func (c *Client) RunNotebook(ctx context.Context, notebookName string, parameters map[string]any) (*JobRun, error) {
	notebookID, err := c.ResolveItemID(ctx, notebookName, "Notebook")
	if err != nil {
		return nil, err
	}

	var payload any
	if len(parameters) > 0 {
		payload = map[string]any{
			"executionData": map[string]any{"parameters": parameters},
		}
	} else {
		payload = map[string]any{}
	}

	path := fmt.Sprintf("/v1/workspaces/%s/items/%s/jobs/instances?jobType=%s",
		c.WorkspaceID, notebookID, jobTypeRunNotebook)
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated && resp.status != http.StatusAccepted {
		return nil, apiError("triggering notebook "+notebookName, resp)
	}

	run := &JobRun{
		NotebookID:   notebookID,
		NotebookName: notebookName,
		WorkspaceID:  c.WorkspaceID,
		Location:     resp.headers.Get("Location"),
	}

	// Location: .../items/{itemId}/jobs/instances/{jobId}
	if run.Location != "" {
		parts := strings.Split(strings.TrimSuffix(run.Location, "/"), "/")
		run.JobID = parts[len(parts)-1]
	}
	if run.JobID == "" && len(resp.body) > 0 {
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp.body, &body); err == nil {
			run.JobID = body.ID
		}
	}
	if run.JobID == "" {
		return nil, fmt.Errorf("notebook %s: job accepted but no job ID returned", notebookName)
	}
	return run, nil
}

// GetJobStatus fetches the current state of a job instance.
func (c *Client) GetJobStatus(ctx context.Context, itemID, jobID string) (*JobStatus, error) {
	path := fmt.Sprintf("/v1/workspaces/%s/items/%s/jobs/instances/%s", c.WorkspaceID, itemID, jobID)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, apiError("fetching job status "+jobID, resp)
	}

	var status JobStatus
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return nil, fmt.Errorf("decoding job status: %w", err)
	}
	return &status, nil
}

// RunNotebookAndWait triggers a notebook job and polls until it reaches a
// terminal state or timeout elapses. Transient status-poll errors are
// tolerated; the loop keeps polling until the deadline.
func (c *Client) RunNotebookAndWait(ctx context.Context, notebookName string, parameters map[string]any, timeout time.Duration) (*JobStatus, error) {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	run, err := c.RunNotebook(ctx, notebookName, parameters)
	if err != nil {
		return nil, err
	}

	poll := c.PollEvery
	if poll <= 0 {
		poll = DefaultPollEvery
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("notebook %s: job %s did not finish within %s", notebookName, run.JobID, timeout)
		}

		status, err := c.GetJobStatus(ctx, run.NotebookID, run.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue // transient poll failure
		}

		if status.Terminal() {
			if !status.Succeeded() {
				return status, fmt.Errorf("notebook %s: job %s ended %s (reason: %v)",
					notebookName, run.JobID, status.Status, status.FailureReason)
			}
			return status, nil
		}
	}
}
