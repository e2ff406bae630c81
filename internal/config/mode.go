package config

import (
	"os"
	"strings"
)

// DeploymentMode represents the deployment context
type DeploymentMode string

const (
	// ModeDevelopment is a source checkout: .env files are expected and
	// local databases are fine.
	ModeDevelopment DeploymentMode = "development"

	// ModePackaged is an installed binary. Credentials come from env vars,
	// the keychain, the credentials file, or an interactive prompt.
	ModePackaged DeploymentMode = "packaged"

	// ModeCI is a CI job: environment variables only, no prompts.
	ModeCI DeploymentMode = "ci"
)

// DetectMode determines the deployment context based on environment
func DetectMode() DeploymentMode {
	// Explicit mode override (highest priority)
	if mode := os.Getenv("REFEFFORT_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "development", "dev":
			return ModeDevelopment
		case "packaged", "pkg", "production", "prod":
			return ModePackaged
		case "ci", "cicd":
			return ModeCI
		}
	}

	if isCI() {
		return ModeCI
	}

	if _, err := os.Stat(".env"); err == nil {
		return ModeDevelopment
	}
	if _, err := os.Stat("go.mod"); err == nil {
		return ModeDevelopment
	}

	return ModePackaged
}

// isCI detects if running in a CI/CD environment
func isCI() bool {
	ciEnvVars := []string{
		"CI",                     // Generic CI indicator
		"CONTINUOUS_INTEGRATION", // Generic CI indicator
		"GITHUB_ACTIONS",         // GitHub Actions
		"GITLAB_CI",              // GitLab CI
		"JENKINS_URL",            // Jenkins
		"BUILDKITE",              // Buildkite
		"TF_BUILD",               // Azure Pipelines
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}

	return false
}

// String returns the string representation of the mode
func (m DeploymentMode) String() string {
	return string(m)
}

// RequiresSecureCredentials returns true if mode requires real credentials
func (m DeploymentMode) RequiresSecureCredentials() bool {
	return m == ModeCI
}

// AllowsInteractivePrompts returns true if interactive prompts are allowed
func (m DeploymentMode) AllowsInteractivePrompts() bool {
	return m == ModePackaged
}
