// Package stage runs a staged deployment plan: ordered groups of artifact
// types, each deployed to completion (with its own retry budget) before the
// next group starts. The actual push of artifacts is delegated to a Deployer;
// this package only governs ordering, retry, and failure propagation.
package stage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default retry policy for a stage.
const (
	DefaultRetries   = 2
	DefaultBaseDelay = 10 * time.Second
)

// Stage is one group of artifact types deployed together.
type Stage struct {
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	ItemTypes []string `json:"item_types" yaml:"item_types"`
}

// Label returns a human-readable stage identifier for logs and reports.
func (s Stage) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.ItemTypes, ", ")
}

// Plan is an ordered sequence of stages. Stages are attempted strictly in
// order; a stage failure halts progression unless the runner is configured
// to continue on failure.
type Plan []Stage

// PlanFromGroups builds a plan from raw config groups (each inner slice is
// one stage's item types).
func PlanFromGroups(groups [][]string) Plan {
	plan := make(Plan, 0, len(groups))
	for i, types := range groups {
		plan = append(plan, Stage{
			Name:      fmt.Sprintf("Stage %d/%d: %s", i+1, len(groups), strings.Join(types, ", ")),
			ItemTypes: types,
		})
	}
	return plan
}

// Status is the terminal state of a stage or of the whole plan.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped" // later stage never attempted after a halt
)

// StageResult records the outcome of one stage.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Status   Status        `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Result aggregates the outcome of a full plan run.
type Result struct {
	Status Status        `json:"status"`
	Stages []StageResult `json:"stages"`
}

// Failed returns the results of stages that exhausted their retry budget.
func (r *Result) Failed() []StageResult {
	var failed []StageResult
	for _, sr := range r.Stages {
		if sr.Status == StatusFailed {
			failed = append(failed, sr)
		}
	}
	return failed
}

// retryableError marks a deployment error as worth retrying. The
// classification decision belongs to the Deployer; the runner only consumes
// the boolean signal.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the runner will retry the stage within its budget.
// A nil err returns nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err carries the retryable marker.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
