// Package report accumulates a record of one deployment session and writes
// it out as JSON alongside a styled terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fabricops/fabdeploy/internal/ui"
)

// Step outcome values.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// Step records one top-level phase of a deployment run.
type Step struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// DeployedItem records a workspace item created or updated by the run.
type DeployedItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Upload records a data upload into a lakehouse.
type Upload struct {
	Lakehouse string `json:"lakehouse"`
	Folder    string `json:"folder"`
	Files     int    `json:"files"`
}

// NotebookRun records a notebook job triggered after deployment.
type NotebookRun struct {
	Notebook string `json:"notebook"`
	JobID    string `json:"job_id,omitempty"`
	Status   string `json:"status"`
}

// Report is the full session record. Create one with New, feed it as the
// run progresses, then Save and Print it.
type Report struct {
	SessionID   string    `json:"session_id"`
	Environment string    `json:"environment,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Steps         []Step         `json:"steps,omitempty"`
	DeployedItems []DeployedItem `json:"deployed_items,omitempty"`
	Uploads       []Upload       `json:"uploads,omitempty"`
	NotebookRuns  []NotebookRun  `json:"notebook_runs,omitempty"`
	FixedIDs      int            `json:"fixed_logical_ids,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// New starts a report for a fresh session.
func New(environment, workspaceID string) *Report {
	return &Report{
		SessionID:   uuid.New().String(),
		Environment: environment,
		WorkspaceID: workspaceID,
		StartedAt:   time.Now().UTC(),
	}
}

// AddStep appends a phase record.
func (r *Report) AddStep(name, status, detail string, d time.Duration) {
	r.Steps = append(r.Steps, Step{Name: name, Status: status, Detail: detail, Duration: d})
}

// AddItem records a deployed workspace item.
func (r *Report) AddItem(name, itemType, id string) {
	r.DeployedItems = append(r.DeployedItems, DeployedItem{Name: name, Type: itemType, ID: id})
}

// AddUpload records a data upload.
func (r *Report) AddUpload(lakehouse, folder string, files int) {
	r.Uploads = append(r.Uploads, Upload{Lakehouse: lakehouse, Folder: folder, Files: files})
}

// AddNotebookRun records a triggered notebook job.
func (r *Report) AddNotebookRun(notebook, jobID, status string) {
	r.NotebookRuns = append(r.NotebookRuns, NotebookRun{Notebook: notebook, JobID: jobID, Status: status})
}

// AddError records a failure message.
func (r *Report) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a non-fatal issue.
func (r *Report) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Finish stamps the end time. Safe to call more than once; the first call wins.
func (r *Report) Finish() {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
}

// Succeeded reports whether the session completed without errors.
func (r *Report) Succeeded() bool {
	return len(r.Errors) == 0
}

// Duration is the elapsed session time.
func (r *Report) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return end.Sub(r.StartedAt)
}

// Save writes the report as indented JSON. The write goes through a temp
// file in the same directory so a crash never leaves a truncated report.
func (r *Report) Save(path string) error {
	r.Finish()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Print writes a human-readable summary to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, ui.RenderCategory("Deployment Summary"))
	fmt.Fprintln(w, ui.RenderSeparator())
	fmt.Fprintf(w, "Session:     %s\n", r.SessionID)
	if r.Environment != "" {
		fmt.Fprintf(w, "Environment: %s\n", r.Environment)
	}
	if r.WorkspaceID != "" {
		fmt.Fprintf(w, "Workspace:   %s\n", r.WorkspaceID)
	}
	fmt.Fprintf(w, "Duration:    %s\n", r.Duration().Round(time.Millisecond))

	if len(r.Steps) > 0 {
		fmt.Fprintln(w)
		for _, step := range r.Steps {
			icon := ui.RenderPassIcon()
			switch step.Status {
			case StepFailed:
				icon = ui.RenderFailIcon()
			case StepSkipped:
				icon = ui.RenderSkipIcon()
			}
			line := fmt.Sprintf("%s %s", icon, step.Name)
			if step.Detail != "" {
				line += " " + ui.RenderMuted("("+step.Detail+")")
			}
			fmt.Fprintln(w, line)
		}
	}

	if r.FixedIDs > 0 {
		fmt.Fprintf(w, "\nRepaired logical IDs: %d\n", r.FixedIDs)
	}
	if len(r.DeployedItems) > 0 {
		fmt.Fprintf(w, "Deployed items: %d\n", len(r.DeployedItems))
	}
	for _, up := range r.Uploads {
		target := up.Lakehouse + "/Files"
		if up.Folder != "" {
			target += "/" + up.Folder
		}
		fmt.Fprintf(w, "Uploaded %d file(s) to %s\n", up.Files, target)
	}
	for _, run := range r.NotebookRuns {
		fmt.Fprintf(w, "Notebook %s: %s\n", run.Notebook, run.Status)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "%s %s\n", ui.RenderWarnIcon(), warning)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		for _, msg := range r.Errors {
			fmt.Fprintf(w, "%s %s\n", ui.RenderFailIcon(), msg)
		}
	}

	fmt.Fprintln(w, ui.RenderSeparator())
	if r.Succeeded() {
		fmt.Fprintln(w, ui.RenderPass("Deployment succeeded"))
	} else {
		fmt.Fprintln(w, ui.RenderFail("Deployment failed"))
	}
}
