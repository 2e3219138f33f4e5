package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fabricops/fabdeploy/internal/lakehouse"
)

var (
	uploadLakehouse string
	uploadMount     string
	uploadFolder    string
	uploadPatterns  []string
	uploadRecursive bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <source-dir>",
	Short: "Upload files into a lakehouse Files area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lakehouseName := uploadLakehouse
		if lakehouseName == "" {
			if cfg, err := loadConfig(); err == nil {
				lakehouseName = cfg.Data.LakehouseName
			}
		}
		if lakehouseName == "" {
			return errors.New("a lakehouse name is required (--lakehouse or data.lakehouse_name)")
		}
		if uploadMount == "" {
			return errors.New("--mount is required: the local root of the lakehouse Files area")
		}

		fm := lakehouse.NewFileManager(lakehouse.LocalMounter{lakehouseName: uploadMount})
		stats, err := fm.UploadDir(lakehouseName, args[0], uploadFolder, uploadPatterns, uploadRecursive)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(stats)
		} else {
			progress("uploaded %d file(s) to %s/Files/%s", stats.FilesCopied, lakehouseName, uploadFolder)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadLakehouse, "lakehouse", "", "Target lakehouse name (default: data.lakehouse_name)")
	uploadCmd.Flags().StringVar(&uploadMount, "mount", "", "Local mount point of the lakehouse")
	uploadCmd.Flags().StringVar(&uploadFolder, "folder", "", "Target folder under Files/")
	uploadCmd.Flags().StringSliceVar(&uploadPatterns, "pattern", nil, "Only upload files matching these glob patterns")
	uploadCmd.Flags().BoolVar(&uploadRecursive, "recursive", true, "Mirror the source directory structure")
	rootCmd.AddCommand(uploadCmd)
}
