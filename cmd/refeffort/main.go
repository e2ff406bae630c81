package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/config"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/logging"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/probe"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	verbose  bool
	cfg      *config.Config
	registry *logging.Registry
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if registry != nil {
		registry.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refeffort",
	Short: "Refactoring effort - per-commit effort ledgers for refactoring commits",
	Long: `refeffort clones repositories, runs RefactoringMiner over their history and
writes one CSV row per refactoring commit with the developer, the parent
commit and the number of lines the commit touched. It also downloads GitHub
and JIRA bug data for the same repositories.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		registry = logging.NewRegistry(logging.Config{
			Level:      logging.ParseLevel(cfg.Log.Level, verbose),
			Dir:        cfg.Log.Dir,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			JSONFormat: cfg.Log.JSON,
			Console:    os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .refeffort/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`refeffort {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(effortCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(jiraCmd)
	rootCmd.AddCommand(sizesCmd)
	rootCmd.AddCommand(diffsCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configureCmd)
}

// validate checks cfg for the command context and logs warnings
func validate(ctx config.ValidationContext, logger *logrus.Entry) error {
	result := cfg.Validate(ctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.Err()
}

// newStrategy builds the configured size strategy
func newStrategy(logger *logrus.Entry) (probe.Strategy, error) {
	source := probe.NewSourceSizeProbe(probe.SourceConfig{
		Binary:     cfg.Effort.SCCBinary,
		Extensions: cfg.Effort.Extensions,
		Mode:       probe.CountMode(cfg.Effort.CountMode),
		Timeout:    cfg.Effort.SCCTimeout,
	}, logger)
	strategy, err := probe.NewStrategy(cfg.Effort.Strategy, probe.NewDiffSizeProbe(logger), source)
	if err != nil {
		return nil, errors.ConfigErrorf("%v", err)
	}
	return strategy, nil
}

// repoOptions are the options every repository handle is created with
func repoOptions(logger *logrus.Entry) []git.Option {
	return []git.Option{git.WithLogger(logger), git.WithTimeout(cfg.Git.Timeout)}
}

// openStore opens the configured run index
func openStore(logger *logrus.Entry) (storage.Store, error) {
	return storage.Open(cfg.Storage.Type, cfg.Storage.LocalPath, cfg.Storage.PostgresDSN, logger)
}
