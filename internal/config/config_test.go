package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabricops/fabdeploy/internal/github"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sampleYAML = `
github:
  repo_owner: contoso
  repo_name: analytics-solution
  workspace_folder: workspace
deployment:
  environment: DEV
  item_type_stages:
    - [Lakehouse]
    - [Environment, Notebook]
  retries: 3
data:
  lakehouse_name: DataLH
  folder_mappings:
    data: reference-data
  file_patterns: ["*.csv"]
post_deployment:
  notebook_name: Initialize-Data
  parameters:
    environment: DEV
environments:
  PROD:
    deployment:
      retries: 5
      allow_non_empty_workspace: true
`

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "deployment.yaml", sampleYAML)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "contoso", cfg.GitHub.RepoOwner)
	assert.Equal(t, "analytics-solution", cfg.GitHub.RepoName)
	assert.Equal(t, DefaultBranch, cfg.GitHub.Branch, "branch defaults to main")
	assert.Equal(t, 3, cfg.Deployment.Retries)
	assert.Equal(t, [][]string{{"Lakehouse"}, {"Environment", "Notebook"}}, cfg.Deployment.ItemTypeStages)
	assert.True(t, cfg.Deployment.FixZeroLogicalIDs, "fix_zero_logical_ids defaults to true")
	assert.True(t, cfg.Deployment.ValidateAfterDeployment)
	assert.Equal(t, "DataLH", cfg.Data.LakehouseName)
	assert.Equal(t, DefaultNotebookTimeout, cfg.PostDeployment.TimeoutSeconds)
	assert.Equal(t, path, cfg.Source)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "deployment.yaml", sampleYAML)

	cfg, err := Load(path, "PROD")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Deployment.Retries, "PROD override wins")
	assert.True(t, cfg.Deployment.AllowNonEmptyWorkspace)
	assert.Equal(t, "contoso", cfg.GitHub.RepoOwner, "base sections survive the overlay")
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "deployment.json", `{
		"github": {"repo_owner": "contoso", "repo_name": "solution"},
		"deployment": {"item_types": ["Lakehouse", "Notebook"]}
	}`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lakehouse", "Notebook"}, cfg.Deployment.ItemTypes)
	assert.Equal(t, DefaultEnvironment, cfg.Deployment.Environment)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "deployment.toml", `x = 1`)
	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestValidateMutuallyExclusiveItemSelection(t *testing.T) {
	path := writeConfig(t, "deployment.yaml", `
github:
  repo_owner: o
  repo_name: r
deployment:
  item_types: [Notebook]
  item_type_stages:
    - [Lakehouse]
`)
	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestValidateFolderMappingsNeedLakehouse(t *testing.T) {
	cfg := &Config{
		Data: Data{FolderMappings: map[string]string{"data": "ref"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lakehouse_name")
}

func TestMissingFields(t *testing.T) {
	cfg := &Config{}
	missing := cfg.MissingFields("github.repo_owner", "github.repo_name", "data.lakehouse_name")
	assert.Equal(t, []string{"github.repo_owner", "github.repo_name", "data.lakehouse_name"}, missing)

	cfg.GitHub.RepoOwner = "o"
	cfg.GitHub.RepoName = "r"
	missing = cfg.MissingFields("github.repo_owner", "github.repo_name")
	assert.Empty(t, missing)
}

func TestLoadFromGitHub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contoso/solution/main/config/deployment.yaml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(sampleYAML))
	}))
	defer srv.Close()

	client := github.NewClient("", "contoso", "solution", "main").WithBaseURL(srv.URL, srv.URL)

	cfg, err := LoadFromGitHub(context.Background(), client, "config/deployment.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "contoso", cfg.GitHub.RepoOwner)
}

func TestWriteTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, WriteTemplate(path))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "your-org", cfg.GitHub.RepoOwner)
	assert.NotEmpty(t, cfg.Deployment.ItemTypeStages)

	// Never overwrite an existing file.
	require.Error(t, WriteTemplate(path))
}
