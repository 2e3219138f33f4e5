package main

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/launcher"
)

var (
	deployDryRun       bool
	deploySkipDownload bool
	deployRetries      int
	deployContinue     bool
	deployReportPath   string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full deployment workflow",
	Long: `Download the solution repository, repair placeholder logical IDs,
publish artifacts to the workspace in ordered stages, upload reference data,
and validate the result. The session report is written next to the extracted
repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if missing := cfg.MissingFields("github.repo_owner", "github.repo_name"); len(missing) > 0 {
			return errors.New("configuration is missing required fields: " + strings.Join(missing, ", "))
		}
		if cmd.Flags().Changed("retries") {
			cfg.Deployment.Retries = deployRetries
		}
		if deployContinue {
			cfg.Deployment.ContinueOnStageFailure = true
		}

		fc := fabricClient(cfg)
		if fc == nil && !deployDryRun {
			return errors.New("deployment needs FABRIC_TOKEN and deployment.workspace_id")
		}

		var pub launcher.Publisher
		if fc != nil {
			pub = fc
		}
		l := launcher.New(cfg, githubClient(cfg), fc, pub)
		if !quietMode && !jsonOutput {
			l.Out = os.Stdout
		}

		rep, runErr := l.DownloadAndDeploy(cmd.Context(), launcher.Options{
			DryRun:       deployDryRun,
			SkipDownload: deploySkipDownload,
			ReportPath:   deployReportPath,
		})

		if jsonOutput {
			outputJSON(rep)
		} else if rep != nil {
			rep.Print(os.Stdout)
		}
		return runErr
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Scan and report without changing files or the workspace")
	deployCmd.Flags().BoolVar(&deploySkipDownload, "skip-download", false, "Deploy from the existing workspace folder")
	deployCmd.Flags().IntVar(&deployRetries, "retries", 0, "Per-stage retry budget (overrides configuration)")
	deployCmd.Flags().BoolVar(&deployContinue, "continue-on-failure", false, "Run later stages even after a stage fails")
	deployCmd.Flags().StringVar(&deployReportPath, "report", "", "Session report path (default: <workspace folder>/deployment-report.json)")
	rootCmd.AddCommand(deployCmd)
}
