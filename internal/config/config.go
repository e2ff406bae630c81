package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Git     GitConfig     `yaml:"git" mapstructure:"git"`
	Effort  EffortConfig  `yaml:"effort" mapstructure:"effort"`
	Miner   MinerConfig   `yaml:"miner" mapstructure:"miner"`
	GitHub  GitHubConfig  `yaml:"github" mapstructure:"github"`
	Jira    JiraConfig    `yaml:"jira" mapstructure:"jira"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Runner  RunnerConfig  `yaml:"runner" mapstructure:"runner"`
}

type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
	JSON       bool   `yaml:"json" mapstructure:"json"`
	MaxSize    int64  `yaml:"max_size" mapstructure:"max_size"` // bytes
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// PathsConfig locates inputs and outputs of the pipeline
type PathsConfig struct {
	RepoList        string `yaml:"repo_list" mapstructure:"repo_list"`
	BugIssueDir     string `yaml:"bug_issue_dir" mapstructure:"bug_issue_dir"`
	MinerOutputDir  string `yaml:"miner_output_dir" mapstructure:"miner_output_dir"`
	EffortOutputDir string `yaml:"effort_output_dir" mapstructure:"effort_output_dir"`
	DiffOutputDir   string `yaml:"diff_output_dir" mapstructure:"diff_output_dir"`
	SizesOutput     string `yaml:"sizes_output" mapstructure:"sizes_output"`
}

type GitConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"` // per git invocation, 0 = none
}

type EffortConfig struct {
	Strategy   string        `yaml:"strategy" mapstructure:"strategy"`     // "delta" or "total"
	CountMode  string        `yaml:"count_mode" mapstructure:"count_mode"` // "total-row" or "sum-files"
	SCCBinary  string        `yaml:"scc_binary" mapstructure:"scc_binary"`
	SCCTimeout time.Duration `yaml:"scc_timeout" mapstructure:"scc_timeout"`
	Extensions []string      `yaml:"extensions" mapstructure:"extensions"`
}

type MinerConfig struct {
	Binary  string        `yaml:"binary" mapstructure:"binary"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type GitHubConfig struct {
	Token         string  `yaml:"token" mapstructure:"token"`
	User          string  `yaml:"user" mapstructure:"user"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	RateThreshold int     `yaml:"rate_threshold" mapstructure:"rate_threshold"`
	BugOnly       bool    `yaml:"bug_only" mapstructure:"bug_only"`
}

type JiraConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Token     string  `yaml:"token" mapstructure:"token"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type RunnerConfig struct {
	MaxRepositories int  `yaml:"max_repositories" mapstructure:"max_repositories"` // 0 = all
	Workers         int  `yaml:"workers" mapstructure:"workers"`
	KeepClones      bool `yaml:"keep_clones" mapstructure:"keep_clones"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Dir:        "logs",
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			RepoList:        "repos.txt",
			BugIssueDir:     "bug_issues",
			MinerOutputDir:  "miner_output",
			EffortOutputDir: "effort_output",
			DiffOutputDir:   "diff_output",
			SizesOutput:     "repo_sizes.json",
		},
		Effort: EffortConfig{
			Strategy:  "delta",
			CountMode: "total-row",
			SCCBinary: "scc",
		},
		Miner: MinerConfig{
			Binary: "RefactoringMiner",
		},
		GitHub: GitHubConfig{
			RateLimit:     10, // 10 requests per second
			RateThreshold: 2000,
		},
		Jira: JiraConfig{
			BaseURL:   "https://issues.apache.org/jira/",
			RateLimit: 5,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".refeffort", "runs.db"),
		},
		Runner: RunnerConfig{
			Workers: 1,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// cfg starts from the defaults; Unmarshal only overlays keys that are set
	cfg := Default()

	// Load from environment variables
	v.SetEnvPrefix("REFEFFORT")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".refeffort")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".refeffort"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.KindConfig, "failed to read config")
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to unmarshal config")
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overwrites a variable that is already set, so earlier files win.
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".refeffort", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// GitHub configuration
	for _, envVar := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(envVar); token != "" {
			cfg.GitHub.Token = token
			break
		}
	}
	if user := os.Getenv("GITHUB_USER"); user != "" {
		cfg.GitHub.User = user
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	if threshold := os.Getenv("GITHUB_RATE_THRESHOLD"); threshold != "" {
		if n, err := strconv.Atoi(threshold); err == nil {
			cfg.GitHub.RateThreshold = n
		}
	}

	// JIRA configuration
	if token := os.Getenv("JIRA_TOKEN"); token != "" {
		cfg.Jira.Token = token
	}
	if url := os.Getenv("JIRA_BASE_URL"); url != "" {
		cfg.Jira.BaseURL = url
	}

	// Effort configuration
	if strategy := os.Getenv("EFFORT_STRATEGY"); strategy != "" {
		cfg.Effort.Strategy = strategy
	}
	if mode := os.Getenv("EFFORT_COUNT_MODE"); mode != "" {
		cfg.Effort.CountMode = mode
	}
	if bin := os.Getenv("SCC_BINARY"); bin != "" {
		cfg.Effort.SCCBinary = bin
	}
	if bin := os.Getenv("REFACTORING_MINER"); bin != "" {
		cfg.Miner.Binary = expandPath(bin)
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Runner configuration
	if max := os.Getenv("MAX_REPOSITORIES"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			cfg.Runner.MaxRepositories = n
		}
	}

	if dir := os.Getenv("LOG_DIR"); dir != "" {
		cfg.Log.Dir = expandPath(dir)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. Secrets are not written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	github := c.GitHub
	github.Token = ""
	jira := c.Jira
	jira.Token = ""

	// Convert struct to map for Viper
	v.Set("log", c.Log)
	v.Set("paths", c.Paths)
	v.Set("git", c.Git)
	v.Set("effort", c.Effort)
	v.Set("miner", c.Miner)
	v.Set("github", github)
	v.Set("jira", jira)
	v.Set("storage", c.Storage)
	v.Set("runner", c.Runner)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
