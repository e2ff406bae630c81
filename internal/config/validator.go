package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextEffort - effort needs the size strategy and scc settings
	ValidationContextEffort ValidationContext = "effort"
	// ValidationContextIssues - GitHub issue and size downloads need a token
	ValidationContextIssues ValidationContext = "issues"
	// ValidationContextJira - JIRA downloads need a base URL
	ValidationContextJira ValidationContext = "jira"
	// ValidationContextRun - the full pipeline needs everything plus storage
	ValidationContextRun ValidationContext = "run"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ❌ %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠️  %s\n", warn))
		}
	}

	return sb.String()
}

// Err returns the result as a Config error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(vr.Error())
}

// Validate validates configuration for the given context with auto-detected mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	return c.ValidateWithMode(ctx, DetectMode())
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextEffort:
		c.validateEffort(result)
	case ValidationContextIssues:
		c.validateGitHub(result, mode.RequiresSecureCredentials())
	case ValidationContextJira:
		c.validateJira(result)
	case ValidationContextRun:
		c.validateEffort(result)
		c.validateMiner(result)
		c.validateGitHub(result, mode.RequiresSecureCredentials())
		c.validateJira(result)
		c.validateStorage(result, mode)
		c.validateRunner(result)
	case ValidationContextAll:
		c.validateEffort(result)
		c.validateMiner(result)
		c.validateGitHub(result, false)
		c.validateJira(result)
		c.validateStorage(result, mode)
		c.validateRunner(result)
	}

	return result
}

func (c *Config) validateEffort(result *ValidationResult) {
	switch c.Effort.Strategy {
	case "delta", "total":
	default:
		result.AddError("effort.strategy must be \"delta\" or \"total\", got %q", c.Effort.Strategy)
	}

	switch c.Effort.CountMode {
	case "total-row", "sum-files":
	default:
		result.AddError("effort.count_mode must be \"total-row\" or \"sum-files\", got %q", c.Effort.CountMode)
	}

	if c.Effort.Strategy == "total" && c.Effort.SCCBinary == "" {
		result.AddError("effort.scc_binary is required when strategy is total")
	}
	if c.Effort.SCCTimeout < 0 || c.Git.Timeout < 0 {
		result.AddError("timeouts must not be negative")
	}
}

func (c *Config) validateMiner(result *ValidationResult) {
	if c.Miner.Binary == "" {
		result.AddError("REFACTORING_MINER (miner.binary) is required but not set")
	}
	if c.Paths.MinerOutputDir == "" {
		result.AddError("paths.miner_output_dir is required but not set")
	}
}

func (c *Config) validateGitHub(result *ValidationResult, required bool) {
	if c.GitHub.Token == "" {
		if required {
			result.AddError("GITHUB_TOKEN is required but not set")
		} else {
			result.AddWarning("GITHUB_TOKEN is not set. Unauthenticated requests are limited to 60 per hour.")
		}
	}

	if c.GitHub.RateLimit <= 0 {
		result.AddWarning("GITHUB_RATE_LIMIT is invalid, will use default (10 req/s)")
	}
	if c.GitHub.RateThreshold < 0 {
		result.AddError("GITHUB_RATE_THRESHOLD must not be negative")
	}
	if c.GitHub.BaseURL != "" {
		if _, err := url.Parse(c.GitHub.BaseURL); err != nil {
			result.AddError("github.base_url is invalid: %v", err)
		}
	}
}

func (c *Config) validateJira(result *ValidationResult) {
	if c.Jira.BaseURL == "" {
		result.AddError("JIRA_BASE_URL is required but not set")
		return
	}
	u, err := url.Parse(c.Jira.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("JIRA_BASE_URL is invalid: %q", c.Jira.BaseURL)
	}
	if c.Jira.Token == "" {
		result.AddWarning("JIRA_TOKEN is not set, only public projects are visible")
	}
}

func (c *Config) validateStorage(result *ValidationResult, mode DeploymentMode) {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("LOCAL_DB_PATH is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("POSTGRES_DSN is required but not set")
			return
		}
		if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		}
		if strings.Contains(c.Storage.PostgresDSN, "sslmode=disable") {
			if mode.RequiresSecureCredentials() {
				result.AddError("PostgreSQL DSN has sslmode=disable. This is not allowed in %s mode.", mode)
			} else {
				result.AddWarning("PostgreSQL DSN has sslmode=disable.")
			}
		}
	default:
		result.AddError("STORAGE_TYPE must be \"sqlite\" or \"postgres\", got %q", c.Storage.Type)
	}
}

func (c *Config) validateRunner(result *ValidationResult) {
	if c.Runner.Workers < 1 {
		result.AddWarning("runner.workers is %d, will use 1", c.Runner.Workers)
	}
	if c.Runner.MaxRepositories < 0 {
		result.AddError("MAX_REPOSITORIES must not be negative")
	}
	if c.Paths.RepoList == "" {
		result.AddError("paths.repo_list is required but not set")
	}
}
