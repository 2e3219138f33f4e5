package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/fabric"
	"github.com/fabricops/fabdeploy/internal/platform"
	"github.com/fabricops/fabdeploy/internal/ui"
)

var validateDir string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that deployed artifacts exist and are accessible",
	Long: `Inventory the workspace folder's artifact descriptors and verify each
expected item exists in the target workspace and responds to a direct get.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := fabricClient(cfg)
		if client == nil {
			return errors.New("validation needs FABRIC_TOKEN and deployment.workspace_id")
		}

		dir := validateDir
		if dir == "" {
			dir = cfg.GitHub.WorkspaceFolder
		}
		items, err := platform.Discover(dir)
		if err != nil {
			return err
		}
		expected := make([]fabric.ExpectedItem, 0, len(items))
		for _, item := range items {
			expected = append(expected, fabric.ExpectedItem{Name: item.DisplayName, Type: item.Type})
		}

		result, err := client.ValidateDeployment(cmd.Context(), expected)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(result)
		} else {
			for _, check := range result.Items {
				icon := ui.RenderPassIcon()
				detail := check.ID
				if !check.Accessible {
					icon = ui.RenderFailIcon()
					detail = check.Error
				}
				fmt.Printf("%s %s (%s) %s\n", icon, check.Name, check.Type, ui.RenderMuted(detail))
			}
			for _, missing := range result.MissingItems {
				fmt.Printf("%s %s %s\n", ui.RenderFailIcon(), missing, ui.RenderMuted("missing"))
			}
		}

		if !result.Passed {
			problems := len(result.MissingItems) + result.FailedCount
			if problems == 0 {
				problems = len(result.Errors)
			}
			return fmt.Errorf("%d validation problem(s) across %d item(s)", problems, len(result.Items))
		}
		progress("%d item(s) verified", len(result.Items))
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateDir, "dir", "", "Workspace folder to inventory (default: github.workspace_folder)")
	rootCmd.AddCommand(validateCmd)
}
