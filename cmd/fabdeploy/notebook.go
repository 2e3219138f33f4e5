package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/ui"
)

var (
	notebookWait    bool
	notebookTimeout time.Duration
	notebookParams  []string
)

var runNotebookCmd = &cobra.Command{
	Use:   "run-notebook <name>",
	Short: "Trigger a notebook job in the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := fabricClient(cfg)
		if client == nil {
			return errors.New("running notebooks needs FABRIC_TOKEN and deployment.workspace_id")
		}

		params := map[string]any{}
		for k, v := range cfg.PostDeployment.Parameters {
			params[k] = v
		}
		for _, kv := range notebookParams {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid --param %q, expected key=value", kv)
			}
			params[key] = value
		}

		if notebookWait {
			status, err := client.RunNotebookAndWait(cmd.Context(), args[0], params, notebookTimeout)
			if err != nil {
				return err
			}
			if jsonOutput {
				outputJSON(status)
			} else {
				progress("%s notebook %s finished: %s", ui.RenderPassIcon(), args[0], status.Status)
			}
			return nil
		}

		run, err := client.RunNotebook(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(run)
		} else {
			progress("started job %s for notebook %s", run.JobID, args[0])
		}
		return nil
	},
}

func init() {
	runNotebookCmd.Flags().BoolVar(&notebookWait, "wait", false, "Poll until the job reaches a terminal state")
	runNotebookCmd.Flags().DurationVar(&notebookTimeout, "timeout", time.Hour, "Synchronous wait budget")
	runNotebookCmd.Flags().StringSliceVar(&notebookParams, "param", nil, "Notebook parameter as key=value (repeatable)")
	rootCmd.AddCommand(runNotebookCmd)
}
