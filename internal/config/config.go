// Package config loads and validates deployment configuration.
//
// Configuration lives in a YAML or JSON file, either local or fetched from
// the source repository itself. The file is parsed once at the boundary into
// a typed Config; nothing downstream works with raw maps. An optional
// environments.<NAME> section overlays environment-specific values (DEV,
// TEST, PROD) over the base sections.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/fabricops/fabdeploy/internal/github"
)

// Defaults applied when the config file leaves fields unset.
const (
	DefaultBranch          = "main"
	DefaultWorkspaceFolder = "workspace"
	DefaultEnvironment     = "DEV"
	DefaultRetries         = 2
	DefaultNotebookTimeout = 3600 // seconds
)

// GitHub identifies the source repository.
type GitHub struct {
	RepoOwner       string `mapstructure:"repo_owner" yaml:"repo_owner"`
	RepoName        string `mapstructure:"repo_name" yaml:"repo_name"`
	Branch          string `mapstructure:"branch" yaml:"branch"`
	Token           string `mapstructure:"token" yaml:"token,omitempty"`
	WorkspaceFolder string `mapstructure:"workspace_folder" yaml:"workspace_folder"`
}

// Deployment governs how workspace artifacts are pushed.
type Deployment struct {
	Environment             string     `mapstructure:"environment" yaml:"environment"`
	WorkspaceID             string     `mapstructure:"workspace_id" yaml:"workspace_id,omitempty"`
	ItemTypes               []string   `mapstructure:"item_types" yaml:"item_types,omitempty"`
	ItemTypeStages          [][]string `mapstructure:"item_type_stages" yaml:"item_type_stages,omitempty"`
	Retries                 int        `mapstructure:"retries" yaml:"retries"`
	AllowNonEmptyWorkspace  bool       `mapstructure:"allow_non_empty_workspace" yaml:"allow_non_empty_workspace"`
	FixZeroLogicalIDs       bool       `mapstructure:"fix_zero_logical_ids" yaml:"fix_zero_logical_ids"`
	ValidateAfterDeployment bool       `mapstructure:"validate_after_deployment" yaml:"validate_after_deployment"`
	ContinueOnStageFailure  bool       `mapstructure:"continue_on_stage_failure" yaml:"continue_on_stage_failure"`
}

// Data maps repository data folders to lakehouse target folders.
type Data struct {
	LakehouseName  string            `mapstructure:"lakehouse_name" yaml:"lakehouse_name,omitempty"`
	FolderMappings map[string]string `mapstructure:"folder_mappings" yaml:"folder_mappings,omitempty"`
	FilePatterns   []string          `mapstructure:"file_patterns" yaml:"file_patterns,omitempty"`
}

// PostDeployment names a notebook job to trigger after a successful deploy.
type PostDeployment struct {
	NotebookName   string         `mapstructure:"notebook_name" yaml:"notebook_name,omitempty"`
	Parameters     map[string]any `mapstructure:"parameters" yaml:"parameters,omitempty"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Config is the fully resolved deployment configuration.
type Config struct {
	GitHub         GitHub         `mapstructure:"github" yaml:"github"`
	Deployment     Deployment     `mapstructure:"deployment" yaml:"deployment"`
	Data           Data           `mapstructure:"data" yaml:"data,omitempty"`
	PostDeployment PostDeployment `mapstructure:"post_deployment" yaml:"post_deployment,omitempty"`

	// Source is the path the config was loaded from, for diagnostics.
	Source string `mapstructure:"-" yaml:"-"`
}

// Load reads a YAML or JSON config file and resolves it for the given
// environment (empty uses the file's deployment.environment, falling back
// to DEV). Environment overrides under environments.<NAME> are merged over
// the base sections before unmarshalling.
func Load(path, environment string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file %s: %w", path, err)
	}

	v := viper.New()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	case ".json":
		v.SetConfigType("json")
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml, or .json)", ext)
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading configuration %s: %w", path, err)
	}

	if environment == "" {
		environment = v.GetString("deployment.environment")
	}
	if environment == "" {
		environment = DefaultEnvironment
	}

	// Overlay environment-specific sections over the base config.
	if overrides := v.GetStringMap("environments." + environment); len(overrides) > 0 {
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("merging %s overrides: %w", environment, err)
		}
	}
	v.Set("deployment.environment", environment)

	applyDefaults(v, environment)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration %s: %w", path, err)
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper, environment string) {
	v.SetDefault("github.branch", DefaultBranch)
	v.SetDefault("github.workspace_folder", DefaultWorkspaceFolder)
	v.SetDefault("deployment.environment", environment)
	v.SetDefault("deployment.retries", DefaultRetries)
	v.SetDefault("deployment.fix_zero_logical_ids", true)
	v.SetDefault("deployment.validate_after_deployment", true)
	v.SetDefault("post_deployment.timeout_seconds", DefaultNotebookTimeout)
}

// LoadFromGitHub downloads a config file from the repository the client
// points at and loads it. The downloaded file lands in a temp directory.
func LoadFromGitHub(ctx context.Context, client *github.Client, filePath, environment string) (*Config, error) {
	dir, err := os.MkdirTemp("", "fabdeploy-config-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	saved, err := client.DownloadFile(ctx, filePath, dir)
	if err != nil {
		return nil, err
	}
	return Load(saved, environment)
}

// Validate checks structural constraints that viper cannot express.
func (c *Config) Validate() error {
	if len(c.Deployment.ItemTypes) > 0 && len(c.Deployment.ItemTypeStages) > 0 {
		return fmt.Errorf("deployment.item_types and deployment.item_type_stages are mutually exclusive")
	}
	if c.Deployment.Retries < 0 {
		return fmt.Errorf("deployment.retries must be non-negative, got %d", c.Deployment.Retries)
	}
	if len(c.Data.FolderMappings) > 0 && c.Data.LakehouseName == "" {
		return fmt.Errorf("data.folder_mappings requires data.lakehouse_name")
	}
	for i, st := range c.Deployment.ItemTypeStages {
		if len(st) == 0 {
			return fmt.Errorf("deployment.item_type_stages[%d] is empty", i)
		}
	}
	return nil
}

// MissingFields returns the dotted keys among required that are unset.
func (c *Config) MissingFields(required ...string) []string {
	var missing []string
	for _, key := range required {
		switch key {
		case "github.repo_owner":
			if c.GitHub.RepoOwner == "" {
				missing = append(missing, key)
			}
		case "github.repo_name":
			if c.GitHub.RepoName == "" {
				missing = append(missing, key)
			}
		case "deployment.workspace_id":
			if c.Deployment.WorkspaceID == "" {
				missing = append(missing, key)
			}
		case "data.lakehouse_name":
			if c.Data.LakehouseName == "" {
				missing = append(missing, key)
			}
		case "post_deployment.notebook_name":
			if c.PostDeployment.NotebookName == "" {
				missing = append(missing, key)
			}
		}
	}
	return missing
}
