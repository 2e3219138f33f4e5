package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const templateHeader = `# fabdeploy deployment configuration
#
# Values under environments.<NAME> override the base sections when that
# environment is selected (fabdeploy deploy --environment TEST).
`

// Template returns a starter configuration with every section populated.
func Template() *Config {
	return &Config{
		GitHub: GitHub{
			RepoOwner:       "your-org",
			RepoName:        "your-solution",
			Branch:          DefaultBranch,
			WorkspaceFolder: DefaultWorkspaceFolder,
		},
		Deployment: Deployment{
			Environment:             DefaultEnvironment,
			WorkspaceID:             "your-workspace-guid",
			ItemTypeStages:          [][]string{{"Lakehouse"}, {"Environment", "Notebook"}},
			Retries:                 DefaultRetries,
			FixZeroLogicalIDs:       true,
			ValidateAfterDeployment: true,
		},
		Data: Data{
			LakehouseName: "DataLH",
			FolderMappings: map[string]string{
				"data":    "reference-data",
				"samples": "sample-data",
			},
			FilePatterns: []string{"*.json", "*.csv", "*.parquet"},
		},
		PostDeployment: PostDeployment{
			NotebookName:   "Initialize-Data",
			Parameters:     map[string]any{"environment": DefaultEnvironment},
			TimeoutSeconds: DefaultNotebookTimeout,
		},
	}
}

// WriteTemplate writes a starter YAML configuration to path. It refuses to
// overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", path)
	}

	var buf bytes.Buffer
	buf.WriteString(templateHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Template()); err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0640); err != nil { // #nosec G306 - config template, not a secret
		return fmt.Errorf("writing template %s: %w", path, err)
	}
	return nil
}
