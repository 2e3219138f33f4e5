// Command fabdeploy deploys Microsoft Fabric workspace solutions from
// GitHub repositories: download, identifier repair, staged artifact
// publishing, data upload, and post-deployment validation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/config"
	"github.com/fabricops/fabdeploy/internal/fabric"
	"github.com/fabricops/fabdeploy/internal/github"
	"github.com/fabricops/fabdeploy/internal/telemetry"
	"github.com/fabricops/fabdeploy/internal/ui"
)

var (
	configPath  string
	environment string
	jsonOutput  bool
	quietMode   bool
	verboseMode bool
)

var rootCmd = &cobra.Command{
	Use:   "fabdeploy",
	Short: "fabdeploy - Microsoft Fabric workspace deployment",
	Long: `Deploy Fabric workspace solutions from GitHub repositories.

fabdeploy downloads a solution repository, repairs placeholder logical
identifiers in artifact descriptors, publishes artifacts to a workspace in
ordered stages with retries, uploads reference data to lakehouses, and
validates the result.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("fabdeploy version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fabdeploy.yaml", "Deployment configuration file")
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", "", "Target environment (overrides deployment.environment)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "Verbose progress output")
	rootCmd.Flags().Bool("version", false, "Print version and exit")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, "fabdeploy", Version); err != nil {
		fmt.Fprintf(os.Stderr, "warning: telemetry init failed: %v\n", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fail(err)
	}
}

// fail prints an error (with operator hints when known) and exits non-zero.
func fail(err error) {
	if jsonOutput {
		outputJSONError(err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFailIcon(), err)
	for _, hint := range fabric.Hints(err) {
		fmt.Fprintf(os.Stderr, "  %s %s\n", ui.RenderWarnIcon(), hint)
	}
	os.Exit(1)
}

func outputJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func outputJSONError(err error) {
	encoder := json.NewEncoder(os.Stderr)
	_ = encoder.Encode(map[string]string{"error": err.Error()})
}

// loadConfig resolves the configuration file for the selected environment.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath, environment)
}

// githubClient builds a GitHub client from the configuration, preferring a
// token from the environment over one committed to the config file.
func githubClient(cfg *config.Config) *github.Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = cfg.GitHub.Token
	}
	return github.NewClient(token, cfg.GitHub.RepoOwner, cfg.GitHub.RepoName, cfg.GitHub.Branch)
}

// fabricClient builds a Fabric client for the configured workspace, or nil
// when no workspace or token is available.
func fabricClient(cfg *config.Config) *fabric.Client {
	token := os.Getenv("FABRIC_TOKEN")
	if token == "" || cfg.Deployment.WorkspaceID == "" {
		return nil
	}
	apiRoot := os.Getenv("FABRIC_API_ROOT")
	return fabric.NewClient(apiRoot, cfg.Deployment.WorkspaceID, fabric.StaticTokenProvider(token))
}

func progress(format string, args ...any) {
	if quietMode || jsonOutput {
		return
	}
	fmt.Printf(format+"\n", args...)
}
