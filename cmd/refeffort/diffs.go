package main

import (
	"fmt"
	"path/filepath"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/gitdiff"
	"github.com/spf13/cobra"
)

var diffsOut string

var diffsCmd = &cobra.Command{
	Use:   "diffs <repo-path>",
	Short: "Export the line-level diff of every commit as JSON",
	Long: `Walks every commit reachable from HEAD, oldest first, and records the
added and deleted lines against its first parent. Root commits are skipped.
The default output is <diff_output_dir>/<repo>_diffs.json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Diffs")
		repo, err := git.Open(args[0], repoOptions(logger)...)
		if err != nil {
			return err
		}

		out := diffsOut
		if out == "" {
			out = filepath.Join(cfg.Paths.DiffOutputDir, filepath.Base(repo.Path())+"_diffs.json")
		}
		n, err := gitdiff.NewExporter(logger).Export(cmd.Context(), repo, out)
		if err != nil {
			return err
		}
		fmt.Printf("%d commits -> %s\n", n, out)
		return nil
	},
}

func init() {
	diffsCmd.Flags().StringVar(&diffsOut, "out", "", "output JSON path")
}
