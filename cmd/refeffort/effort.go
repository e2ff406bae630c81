package main

import (
	"fmt"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/config"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/effort"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	effortRepo     string
	effortReport   string
	effortOut      string
	effortStrategy string
)

var effortCmd = &cobra.Command{
	Use:   "effort",
	Short: "Write the effort ledger of one local repository",
	Long: `Reads a RefactoringMiner JSON report and writes one CSV row per commit that
has at least one refactoring. The working copy at --repo must contain every
commit of the report.

The delta strategy sums added and deleted lines of the commit's diff against
its first parent. The total strategy counts source lines with scc at the
commit and at its first parent, checking out each revision in turn.`,
	Example: `  refeffort effort --repo ./commons-io --report miner_output/commons-io_2024-05-01.json --out developer_effort_commons-io.csv
  refeffort effort --repo ./kafka --report kafka.json --out kafka.csv --strategy total`,
	RunE: runEffort,
}

func init() {
	effortCmd.Flags().StringVar(&effortRepo, "repo", ".", "path to the repository working copy")
	effortCmd.Flags().StringVar(&effortReport, "report", "", "RefactoringMiner JSON report")
	effortCmd.Flags().StringVar(&effortOut, "out", "", "output CSV path")
	effortCmd.Flags().StringVar(&effortStrategy, "strategy", "", "size strategy: delta or total (default from config)")
	effortCmd.MarkFlagRequired("report")
	effortCmd.MarkFlagRequired("out")
}

func runEffort(cmd *cobra.Command, args []string) error {
	logger := registry.For("Effort")
	if effortStrategy != "" {
		cfg.Effort.Strategy = effortStrategy
	}
	if err := validate(config.ValidationContextEffort, logger); err != nil {
		return err
	}

	strategy, err := newStrategy(logger)
	if err != nil {
		return err
	}
	repo, err := git.Open(effortRepo, repoOptions(logger)...)
	if err != nil {
		return err
	}

	result, err := effort.NewAggregator(strategy, logger).Run(cmd.Context(), repo, effortReport, effortOut)
	if result != nil {
		fmt.Printf("%s: %s rows (%d commits skipped) using %s strategy in %s\n",
			result.LedgerPath, humanize.Comma(int64(result.Rows)), result.Skipped,
			result.Strategy, result.Duration.Round(time.Millisecond))
	}
	return err
}
