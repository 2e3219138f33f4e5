package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Deployer pushes one stage's artifact types to the target workspace. It is
// the external deployment collaborator: the runner never inspects what a
// stage deploy actually does, only whether it failed and whether the failure
// is retryable (signalled by wrapping the error with Retryable).
type Deployer interface {
	Deploy(ctx context.Context, st Stage) error
}

// DeployerFunc adapts a function to the Deployer interface.
type DeployerFunc func(ctx context.Context, st Stage) error

func (f DeployerFunc) Deploy(ctx context.Context, st Stage) error { return f(ctx, st) }

// Runner executes a plan stage by stage.
type Runner struct {
	deployer Deployer

	// Retries is the per-stage retry budget (attempts = Retries + 1).
	Retries int

	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration

	// ContinueOnFailure proceeds to later stages after a stage exhausts its
	// budget instead of halting the plan.
	ContinueOnFailure bool

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(st Stage, attempt int, err error, next time.Duration)
}

// NewRunner returns a runner with the default retry policy.
func NewRunner(d Deployer) *Runner {
	return &Runner{
		deployer:  d,
		Retries:   DefaultRetries,
		BaseDelay: DefaultBaseDelay,
	}
}

// newStageBackoff builds the per-stage wait policy.
// BackOff implementations are stateful; always return a fresh instance.
func (r *Runner) newStageBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.BaseDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // budget is attempt-count based, not wall-clock based
	return backoff.WithMaxRetries(bo, uint64(r.Retries))
}

// Run executes every stage of the plan in order. A stage that exhausts its
// retry budget fails the plan and later stages are recorded as skipped,
// unless ContinueOnFailure is set. The returned error is non-nil when the
// plan terminates failed; per-stage detail is always in the Result.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Result, error) {
	result := &Result{Status: StatusSucceeded}
	halted := false

	for _, st := range plan {
		if halted {
			result.Stages = append(result.Stages, StageResult{Stage: st, Status: StatusSkipped})
			continue
		}

		sr := r.runStage(ctx, st)
		result.Stages = append(result.Stages, sr)

		if sr.Status == StatusFailed {
			result.Status = StatusFailed
			if !r.ContinueOnFailure {
				halted = true
			}
		}
	}

	if result.Status == StatusFailed {
		failed := result.Failed()
		first := failed[0]
		return result, fmt.Errorf("stage %q failed after %d attempt(s): %w",
			first.Stage.Label(), first.Attempts, first.Err)
	}
	return result, nil
}

// runStage drives one stage through its retry budget.
func (r *Runner) runStage(ctx context.Context, st Stage) StageResult {
	started := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		err := r.deployer.Deploy(ctx, st)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err // backoff retries within the budget
		}
		return backoff.Permanent(err) // fatal: stop immediately
	}

	notify := func(err error, next time.Duration) {
		if r.OnRetry != nil {
			r.OnRetry(st, attempts, err, next)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(r.newStageBackoff(), ctx), notify)
	if err != nil {
		return StageResult{
			Stage:    st,
			Status:   StatusFailed,
			Attempts: attempts,
			Duration: time.Since(started),
			Err:      err,
			Error:    err.Error(),
		}
	}
	return StageResult{Stage: st, Status: StatusSucceeded, Attempts: attempts, Duration: time.Since(started)}
}
