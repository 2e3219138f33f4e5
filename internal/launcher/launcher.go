// Package launcher orchestrates a full workspace deployment: repository
// download, identifier repair, staged artifact deployment, data upload,
// notebook execution, and validation, with a session report accumulated
// along the way.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fabricops/fabdeploy/internal/config"
	"github.com/fabricops/fabdeploy/internal/fabric"
	"github.com/fabricops/fabdeploy/internal/github"
	"github.com/fabricops/fabdeploy/internal/lakehouse"
	"github.com/fabricops/fabdeploy/internal/platform"
	"github.com/fabricops/fabdeploy/internal/report"
	"github.com/fabricops/fabdeploy/internal/stage"
	"github.com/fabricops/fabdeploy/internal/telemetry"
)

// Step names used in reports and log lines.
const (
	StepDownload  = "download repository"
	StepRepairIDs = "repair logical identifiers"
	StepPrecheck  = "workspace precheck"
	StepDeploy    = "deploy artifacts"
	StepUpload    = "upload data"
	StepValidate  = "validate deployment"
	StepNotebook  = "run post-deployment notebook"
)

// Publisher pushes the artifacts of the given types from a local repository
// folder into the target workspace. It is the one capability the launcher
// cannot provide itself; the CLI injects a Fabric-backed implementation and
// tests inject fakes.
type Publisher interface {
	PublishItems(ctx context.Context, repoDir string, itemTypes []string) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, repoDir string, itemTypes []string) error

func (f PublisherFunc) PublishItems(ctx context.Context, repoDir string, itemTypes []string) error {
	return f(ctx, repoDir, itemTypes)
}

// Options tweaks a single run without touching the loaded configuration.
type Options struct {
	// DryRun limits the identifier repair pass to reporting; nothing is
	// deployed and no file is rewritten.
	DryRun bool
	// SkipDownload deploys from an already populated workspace folder.
	SkipDownload bool
	// ReportPath overrides where the JSON session report is written.
	// Empty writes <workspace folder>/deployment-report.json.
	ReportPath string
}

// Launcher wires the deployment collaborators together. Zero-value fields
// degrade gracefully: a nil Files skips data upload, a nil Fabric skips the
// workspace checks and notebook run.
type Launcher struct {
	Config  *config.Config
	GitHub  *github.Client
	Fabric  *fabric.Client
	Files   *lakehouse.FileManager
	Publish Publisher
	Out     io.Writer

	// RetryBaseDelay overrides the seed delay between stage attempts.
	// Zero keeps the stage runner's default.
	RetryBaseDelay time.Duration
}

// New creates a launcher for the given configuration.
func New(cfg *config.Config, gh *github.Client, fc *fabric.Client, pub Publisher) *Launcher {
	return &Launcher{
		Config:  cfg,
		GitHub:  gh,
		Fabric:  fc,
		Publish: pub,
		Out:     io.Discard,
	}
}

// launchMetrics holds lazily-initialized OTel instruments for deployment runs.
var launchMetrics struct {
	stageDuration metric.Float64Histogram
	repairedIDs   metric.Int64Counter
}

var launchMetricsOnce sync.Once

func initLaunchMetrics() {
	m := telemetry.Meter("github.com/fabricops/fabdeploy/launcher")
	launchMetrics.stageDuration, _ = m.Float64Histogram("fabdeploy.stage.duration",
		metric.WithDescription("Deployment stage duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	launchMetrics.repairedIDs, _ = m.Int64Counter("fabdeploy.repair.fixed_ids",
		metric.WithDescription("Placeholder logical IDs rewritten"),
		metric.WithUnit("{descriptor}"),
	)
}

func (l *Launcher) logf(format string, args ...any) {
	if l.Out != nil {
		fmt.Fprintf(l.Out, format+"\n", args...)
	}
}

// DownloadAndDeploy runs the full workflow and returns the session report.
// The report is returned even on failure so callers can print and persist
// it; the error names the first phase that failed.
func (l *Launcher) DownloadAndDeploy(ctx context.Context, opts Options) (*report.Report, error) {
	if l.Config == nil {
		return nil, errors.New("launcher: configuration is required")
	}
	if l.Publish == nil && !opts.DryRun {
		return nil, errors.New("launcher: a publisher is required")
	}

	ctx, span := telemetry.Tracer("").Start(ctx, "launcher.DownloadAndDeploy")
	defer span.End()
	launchMetricsOnce.Do(initLaunchMetrics)

	cfg := l.Config
	rep := report.New(cfg.Deployment.Environment, cfg.Deployment.WorkspaceID)
	repoDir := cfg.GitHub.WorkspaceFolder

	runErr := l.run(ctx, opts, rep, repoDir)
	rep.Finish()

	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(repoDir, "deployment-report.json")
	}
	if err := rep.Save(reportPath); err != nil {
		rep.AddWarning("could not save session report: %v", err)
	}

	return rep, runErr
}

func (l *Launcher) run(ctx context.Context, opts Options, rep *report.Report, repoDir string) error {
	cfg := l.Config

	if !opts.SkipDownload {
		if err := l.download(ctx, rep, repoDir); err != nil {
			return err
		}
	}

	if cfg.Deployment.FixZeroLogicalIDs {
		if err := l.repairIDs(ctx, rep, repoDir, opts.DryRun); err != nil {
			return err
		}
	}

	if opts.DryRun {
		l.logf("dry run: stopping before deployment")
		return nil
	}

	if l.Fabric != nil && !cfg.Deployment.AllowNonEmptyWorkspace {
		if err := l.precheck(ctx, rep); err != nil {
			return err
		}
	}

	if err := l.deployStages(ctx, rep, repoDir); err != nil {
		return err
	}

	if l.Files != nil && len(cfg.Data.FolderMappings) > 0 {
		if err := l.uploadData(rep, repoDir); err != nil {
			return err
		}
	}

	if l.Fabric != nil && cfg.Deployment.ValidateAfterDeployment {
		if err := l.validate(ctx, rep, repoDir); err != nil {
			return err
		}
	}

	if l.Fabric != nil && cfg.PostDeployment.NotebookName != "" {
		if err := l.runNotebook(ctx, rep); err != nil {
			return err
		}
	}

	return nil
}

func (l *Launcher) download(ctx context.Context, rep *report.Report, repoDir string) error {
	cfg := l.Config
	started := time.Now()
	l.logf("downloading %s/%s@%s", cfg.GitHub.RepoOwner, cfg.GitHub.RepoName, cfg.GitHub.Branch)

	err := l.GitHub.DownloadAndExtract(ctx, repoDir, github.ExtractOptions{})
	if err != nil {
		rep.AddStep(StepDownload, report.StepFailed, "", time.Since(started))
		rep.AddError("download failed: %v", err)
		return fmt.Errorf("downloading repository: %w", err)
	}
	rep.AddStep(StepDownload, report.StepSucceeded, "", time.Since(started))
	return nil
}

func (l *Launcher) repairIDs(ctx context.Context, rep *report.Report, repoDir string, dryRun bool) error {
	started := time.Now()
	result, err := platform.Fix(repoDir, dryRun)
	if err != nil {
		rep.AddStep(StepRepairIDs, report.StepFailed, "", time.Since(started))
		rep.AddError("identifier repair failed: %v", err)
		return fmt.Errorf("repairing logical identifiers: %w", err)
	}

	detail := fmt.Sprintf("%d flagged, %d fixed", len(result.Flagged), len(result.Fixed))
	rep.AddStep(StepRepairIDs, report.StepSucceeded, detail, time.Since(started))
	rep.FixedIDs = len(result.Fixed)
	for _, fe := range result.Failed {
		rep.AddWarning("descriptor %s: %s", fe.Path, fe.Reason)
	}
	if len(result.Fixed) > 0 {
		if !dryRun && launchMetrics.repairedIDs != nil {
			launchMetrics.repairedIDs.Add(ctx, int64(len(result.Fixed)))
		}
		l.logf("repaired %d placeholder logical ID(s)", len(result.Fixed))
	}
	return nil
}

func (l *Launcher) precheck(ctx context.Context, rep *report.Report) error {
	started := time.Now()

	// The orchestrating notebook may legitimately live in the target
	// workspace; everything else means a reused workspace.
	var allowed []string
	if name := l.Config.PostDeployment.NotebookName; name != "" {
		allowed = append(allowed, name)
	}

	if err := l.Fabric.ValidateWorkspaceEmpty(ctx, allowed...); err != nil {
		rep.AddStep(StepPrecheck, report.StepFailed, "", time.Since(started))
		rep.AddError("workspace precheck failed: %v", err)
		for _, hint := range fabric.Hints(err) {
			rep.AddWarning("hint: %s", hint)
		}
		return fmt.Errorf("workspace precheck: %w", err)
	}
	rep.AddStep(StepPrecheck, report.StepSucceeded, "", time.Since(started))
	return nil
}

func (l *Launcher) buildPlan() stage.Plan {
	cfg := l.Config
	if len(cfg.Deployment.ItemTypeStages) > 0 {
		return stage.PlanFromGroups(cfg.Deployment.ItemTypeStages)
	}
	if len(cfg.Deployment.ItemTypes) > 0 {
		return stage.PlanFromGroups([][]string{cfg.Deployment.ItemTypes})
	}
	// No explicit scope deploys everything in one stage.
	return stage.Plan{{Name: "Full deployment"}}
}

func (l *Launcher) deployStages(ctx context.Context, rep *report.Report, repoDir string) error {
	cfg := l.Config
	started := time.Now()
	plan := l.buildPlan()

	runner := stage.NewRunner(stage.DeployerFunc(func(ctx context.Context, st stage.Stage) error {
		err := l.Publish.PublishItems(ctx, repoDir, st.ItemTypes)
		if err != nil && fabric.Retryable(err) {
			return stage.Retryable(err)
		}
		return err
	}))
	runner.Retries = cfg.Deployment.Retries
	runner.ContinueOnFailure = cfg.Deployment.ContinueOnStageFailure
	if l.RetryBaseDelay > 0 {
		runner.BaseDelay = l.RetryBaseDelay
	}
	runner.OnRetry = func(st stage.Stage, attempt int, err error, next time.Duration) {
		l.logf("%s attempt %d failed (%v), retrying in %s", st.Label(), attempt, err, next.Round(time.Second))
	}

	result, err := runner.Run(ctx, plan)
	for _, sr := range result.Stages {
		detail := fmt.Sprintf("%d attempt(s)", sr.Attempts)
		switch sr.Status {
		case stage.StatusSucceeded:
			rep.AddStep(sr.Stage.Label(), report.StepSucceeded, detail, sr.Duration)
		case stage.StatusFailed:
			rep.AddStep(sr.Stage.Label(), report.StepFailed, detail, sr.Duration)
		case stage.StatusSkipped:
			rep.AddStep(sr.Stage.Label(), report.StepSkipped, "", 0)
			continue
		}
		if launchMetrics.stageDuration != nil {
			launchMetrics.stageDuration.Record(ctx, float64(sr.Duration.Milliseconds()),
				metric.WithAttributes(
					attribute.String("fabdeploy.stage", sr.Stage.Label()),
					attribute.String("fabdeploy.stage.status", string(sr.Status)),
				))
		}
	}
	if err != nil {
		rep.AddError("deployment failed: %v", err)
		for _, sr := range result.Stages {
			if sr.Status == stage.StatusFailed && sr.Err != nil {
				for _, hint := range fabric.Hints(sr.Err) {
					rep.AddWarning("hint: %s", hint)
				}
			}
		}
		return fmt.Errorf("deploying artifacts: %w", err)
	}

	rep.AddStep(StepDeploy, report.StepSucceeded,
		fmt.Sprintf("%d stage(s)", len(plan)), time.Since(started))
	return nil
}

func (l *Launcher) uploadData(rep *report.Report, repoDir string) error {
	cfg := l.Config
	started := time.Now()

	stats, err := l.Files.CopyFolders(cfg.Data.LakehouseName, repoDir, cfg.Data.FolderMappings, cfg.Data.FilePatterns)
	if err != nil {
		rep.AddStep(StepUpload, report.StepFailed, "", time.Since(started))
		rep.AddError("data upload failed: %v", err)
		return fmt.Errorf("uploading data: %w", err)
	}

	for _, folder := range stats.SkippedFolders {
		rep.AddWarning("data folder %q not found in repository, skipped", folder)
	}
	for _, fc := range stats.Folders {
		rep.AddUpload(cfg.Data.LakehouseName, fc.Folder, fc.Files)
	}
	rep.AddStep(StepUpload, report.StepSucceeded,
		fmt.Sprintf("%d file(s)", stats.FilesCopied), time.Since(started))
	return nil
}

func (l *Launcher) validate(ctx context.Context, rep *report.Report, repoDir string) error {
	started := time.Now()

	items, err := platform.Discover(repoDir)
	if err != nil {
		rep.AddWarning("could not inventory repository artifacts: %v", err)
		return nil
	}
	expected := make([]fabric.ExpectedItem, 0, len(items))
	for _, item := range items {
		expected = append(expected, fabric.ExpectedItem{Name: item.DisplayName, Type: item.Type})
	}

	result, err := l.Fabric.ValidateDeployment(ctx, expected)
	if err != nil {
		rep.AddStep(StepValidate, report.StepFailed, "", time.Since(started))
		rep.AddError("validation failed: %v", err)
		return fmt.Errorf("validating deployment: %w", err)
	}

	for _, check := range result.Items {
		if check.Accessible {
			rep.AddItem(check.Name, check.Type, check.ID)
		}
	}
	if !result.Passed {
		problems := len(result.MissingItems) + result.FailedCount
		if problems == 0 {
			problems = len(result.Errors)
		}
		rep.AddStep(StepValidate, report.StepFailed,
			fmt.Sprintf("%d problem(s) across %d item(s)", problems, len(result.Items)),
			time.Since(started))
		for _, missing := range result.MissingItems {
			rep.AddError("expected item %s not found in workspace", missing)
		}
		for _, check := range result.Items {
			if !check.Accessible {
				rep.AddError("item %s (%s): %s", check.Name, check.Type, check.Error)
			}
		}
		for _, msg := range result.Errors {
			rep.AddError("%s", msg)
		}
		return fmt.Errorf("validation found %d problem(s)", problems)
	}

	rep.AddStep(StepValidate, report.StepSucceeded,
		fmt.Sprintf("%d item(s) verified", len(result.Items)), time.Since(started))
	return nil
}

func (l *Launcher) runNotebook(ctx context.Context, rep *report.Report) error {
	cfg := l.Config
	started := time.Now()
	timeout := time.Duration(cfg.PostDeployment.TimeoutSeconds) * time.Second

	l.logf("running notebook %s", cfg.PostDeployment.NotebookName)
	status, err := l.Fabric.RunNotebookAndWait(ctx, cfg.PostDeployment.NotebookName, cfg.PostDeployment.Parameters, timeout)
	if err != nil {
		jobStatus := "unknown"
		if status != nil {
			jobStatus = status.Status
		}
		rep.AddNotebookRun(cfg.PostDeployment.NotebookName, "", jobStatus)
		rep.AddStep(StepNotebook, report.StepFailed, "", time.Since(started))
		rep.AddError("notebook %s: %v", cfg.PostDeployment.NotebookName, err)
		return fmt.Errorf("running notebook %s: %w", cfg.PostDeployment.NotebookName, err)
	}

	rep.AddNotebookRun(cfg.PostDeployment.NotebookName, status.ID, status.Status)
	rep.AddStep(StepNotebook, report.StepSucceeded, status.Status, time.Since(started))
	return nil
}
