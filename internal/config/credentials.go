package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager handles credential retrieval with priority chain
// Priority: Environment Variables → Keychain → Credentials File → Interactive Prompt
type CredentialManager struct {
	mode       DeploymentMode
	keyring    secretStore
	configPath string
}

// secretStore is the keychain surface the manager needs
type secretStore interface {
	IsAvailable() bool
	Get(item string) (string, error)
	Set(item, value string) error
}

// Credentials holds all user credentials
type Credentials struct {
	GitHubUser  string `yaml:"github_user,omitempty"`
	GitHubToken string `yaml:"github_token,omitempty"`
	JiraToken   string `yaml:"jira_token,omitempty"`
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager() *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	return &CredentialManager{
		mode:       DetectMode(),
		keyring:    NewKeyringManager(),
		configPath: filepath.Join(homeDir, ".config", "refeffort", "credentials.yaml"),
	}
}

type credential struct {
	envVars  []string
	item     string
	fromFile func(*Credentials) string
	prompt   string
	optional bool
}

var (
	githubToken = credential{
		envVars:  []string{"GITHUB_TOKEN", "GH_TOKEN"},
		item:     KeyringGitHubTokenItem,
		fromFile: func(c *Credentials) string { return c.GitHubToken },
		prompt:   "Enter GitHub Token (or press Enter to skip): ",
		optional: true,
	}
	githubUser = credential{
		envVars:  []string{"GITHUB_USER"},
		item:     KeyringGitHubUserItem,
		fromFile: func(c *Credentials) string { return c.GitHubUser },
		optional: true,
	}
	jiraToken = credential{
		envVars:  []string{"JIRA_TOKEN"},
		item:     KeyringJiraTokenItem,
		fromFile: func(c *Credentials) string { return c.JiraToken },
		prompt:   "Enter JIRA Token (or press Enter to skip): ",
		optional: true,
	}
)

// GetGitHubToken retrieves the GitHub token using the priority chain.
// The token is optional for public repositories.
func (cm *CredentialManager) GetGitHubToken() (string, error) {
	return cm.resolve(githubToken)
}

// GetGitHubUser retrieves the GitHub user name
func (cm *CredentialManager) GetGitHubUser() (string, error) {
	return cm.resolve(githubUser)
}

// GetJiraToken retrieves the JIRA token
func (cm *CredentialManager) GetJiraToken() (string, error) {
	return cm.resolve(jiraToken)
}

func (cm *CredentialManager) resolve(c credential) (string, error) {
	// 1. Environment variable (highest priority)
	for _, envVar := range c.envVars {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
	}

	// 2. Keychain (macOS/Linux)
	if cm.keyring.IsAvailable() {
		if v, err := cm.keyring.Get(c.item); err == nil && v != "" {
			return v, nil
		}
	}

	// 3. Credentials file
	if creds, err := cm.loadConfigFile(); err == nil && c.fromFile(creds) != "" {
		return c.fromFile(creds), nil
	}

	// 4. Interactive prompt (only in packaged mode, not in CI)
	if c.prompt != "" && cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Print(c.prompt)
		v, _ := cm.readSecurely()
		if v != "" {
			if cm.keyring.IsAvailable() {
				cm.keyring.Set(c.item, v)
			}
			return v, nil
		}
	}

	if c.optional {
		return "", nil
	}
	return "", errors.ConfigErrorf(
		"%s not found. Set it via:\n"+
			"  1. Environment variable: export %s=...\n"+
			"  2. Run: refeffort configure (to set up keychain)\n"+
			"  3. Credentials file: %s", c.envVars[0], c.envVars[0], cm.configPath)
}

// SaveCredentials saves credentials to keychain (preferred) or credentials file (fallback)
func (cm *CredentialManager) SaveCredentials(creds Credentials) error {
	if cm.keyring.IsAvailable() {
		for item, value := range map[string]string{
			KeyringGitHubUserItem:  creds.GitHubUser,
			KeyringGitHubTokenItem: creds.GitHubToken,
			KeyringJiraTokenItem:   creds.JiraToken,
		} {
			if value == "" {
				continue
			}
			if err := cm.keyring.Set(item, value); err != nil {
				return errors.Wrap(err, errors.KindConfig, "failed to save "+item+" to keychain")
			}
		}
		return nil
	}

	// Fallback: merge into the credentials file
	existing, err := cm.loadConfigFile()
	if err != nil {
		existing = &Credentials{}
	}
	if creds.GitHubUser != "" {
		existing.GitHubUser = creds.GitHubUser
	}
	if creds.GitHubToken != "" {
		existing.GitHubToken = creds.GitHubToken
	}
	if creds.JiraToken != "" {
		existing.JiraToken = creds.JiraToken
	}
	return cm.saveConfigFile(*existing)
}

// loadConfigFile loads credentials from the credentials file
func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// saveConfigFile saves credentials to the credentials file
func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	// Write file with restrictive permissions (user-only read/write)
	return os.WriteFile(cm.configPath, data, 0600)
}

// readSecurely reads a token from stdin without echoing
func (cm *CredentialManager) readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Fallback: Read from stdin (piped input)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret prompts on stdout and reads one hidden line
func (cm *CredentialManager) ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	return cm.readSecurely()
}

// isInteractive returns true if stdin is a terminal (not piped)
func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// ConfigPath returns the path to the credentials file
func (cm *CredentialManager) ConfigPath() string {
	return cm.configPath
}

// ApplyTo fills empty credential fields of cfg from the chain
func (cm *CredentialManager) ApplyTo(cfg *Config) error {
	if cfg.GitHub.Token == "" {
		token, err := cm.GetGitHubToken()
		if err != nil {
			return err
		}
		cfg.GitHub.Token = token
	}
	if cfg.GitHub.User == "" {
		user, err := cm.GetGitHubUser()
		if err != nil {
			return err
		}
		cfg.GitHub.User = user
	}
	if cfg.Jira.Token == "" {
		token, err := cm.GetJiraToken()
		if err != nil {
			return err
		}
		cfg.Jira.Token = token
	}
	return nil
}
