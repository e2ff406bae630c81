package main

import (
	"fmt"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/refminer"
	"github.com/spf13/cobra"
)

var mineKeep bool

var cloneCmd = &cobra.Command{
	Use:   "clone <url>",
	Short: "Clone a repository into a temporary directory and print its path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := git.Clone(cmd.Context(), args[0], repoOptions(registry.For("Clone"))...)
		if err != nil {
			return err
		}
		fmt.Println(repo.Path())
		return nil
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine <url>",
	Short: "Clone a repository, run RefactoringMiner and print the report path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Miner")
		miner := refminer.NewRunner(cfg.Miner.Binary, cfg.Paths.MinerOutputDir, cfg.Miner.Timeout, logger)
		if err := miner.CheckPrerequisites(); err != nil {
			return err
		}

		repo, err := git.Clone(cmd.Context(), args[0], repoOptions(registry.For("Clone"))...)
		if err != nil {
			return err
		}
		if !mineKeep {
			defer func() {
				if err := repo.Remove(); err != nil {
					logger.WithError(err).Warn("Failed to remove clone")
				}
			}()
		}

		report, err := miner.Mine(cmd.Context(), repo, git.RepoName(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil
	},
}

func init() {
	mineCmd.Flags().BoolVar(&mineKeep, "keep-clone", false, "keep the cloned working copy")
}
