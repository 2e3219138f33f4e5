package main

import (
	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/github"
)

var (
	downloadFolder string
	downloadTarget string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and extract the solution repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		target := downloadTarget
		if target == "" {
			target = cfg.GitHub.WorkspaceFolder
		}

		client := githubClient(cfg)
		progress("downloading %s/%s@%s into %s",
			cfg.GitHub.RepoOwner, cfg.GitHub.RepoName, cfg.GitHub.Branch, target)

		err = client.DownloadAndExtract(cmd.Context(), target, github.ExtractOptions{
			FolderToExtract: downloadFolder,
			StripPrefix:     downloadFolder,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]string{"extracted_to": target})
		} else {
			progress("extracted to %s", target)
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFolder, "folder", "", "Extract only this folder from the repository")
	downloadCmd.Flags().StringVar(&downloadTarget, "target", "", "Extraction directory (default: github.workspace_folder)")
	rootCmd.AddCommand(downloadCmd)
}
