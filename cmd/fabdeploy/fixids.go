package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/platform"
	"github.com/fabricops/fabdeploy/internal/ui"
)

var fixIDsDryRun bool

var fixIDsCmd = &cobra.Command{
	Use:   "fix-ids <directory>",
	Short: "Repair placeholder logical IDs in artifact descriptors",
	Long: `Scan a workspace folder for .platform descriptors whose
config.logicalId is the all-zero placeholder GUID and rewrite each with a
freshly generated identifier. Descriptors with valid identifiers are left
byte-for-byte untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := platform.Fix(args[0], fixIDsDryRun)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(result)
		} else {
			printScanResult(result)
		}

		// A populated Flagged list is the normal outcome of a repair run;
		// only files that could not be rewritten are a failure.
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d descriptor(s) could not be repaired", len(result.Failed))
		}
		return nil
	},
}

func printScanResult(result *platform.ScanResult) {
	verb := "fixed"
	if result.DryRun {
		verb = "would fix"
	}
	fmt.Printf("%d descriptor(s) scanned, %d flagged, %s %d\n",
		result.TotalFiles, len(result.Flagged), verb, len(result.Fixed))

	if verboseMode {
		for _, fixed := range result.Fixed {
			fmt.Printf("  %s %s: %s -> %s\n", ui.RenderPassIcon(), fixed.Path, fixed.OldID, fixed.NewID)
		}
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(os.Stderr, "  %s %s: %s\n", ui.RenderFailIcon(), failed.Path, failed.Reason)
	}
}

func init() {
	fixIDsCmd.Flags().BoolVar(&fixIDsDryRun, "dry-run", false, "Report what would change without writing")
	rootCmd.AddCommand(fixIDsCmd)
}
