package main

import (
	"context"
	"fmt"
	"os"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/config"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/issues"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/repolist"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var issuesBugOnly bool

var issuesCmd = &cobra.Command{
	Use:   "issues <url>",
	Short: "Download the GitHub issues of one repository",
	Long: `Downloads every issue (open and closed, pull requests excluded) of the
repository and writes them to <bug_issue_dir>/<repo>.json. Repositories with
GitHub issues disabled produce no file. The outcome is recorded in the run
index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Issues")
		if issuesBugOnly {
			cfg.GitHub.BugOnly = true
		}
		if err := config.NewCredentialManager().ApplyTo(cfg); err != nil {
			return err
		}
		if err := validate(config.ValidationContextIssues, logger); err != nil {
			return err
		}

		collector, err := issues.NewGitHubCollector(githubConfig(), logger)
		if err != nil {
			return err
		}
		outcome, collectErr := collector.Collect(cmd.Context(), args[0])

		run := storage.NewRunResult(outcome.Repository)
		run.Stage = storage.StageIssues
		run.GitHubITS = outcome.GitHubITS
		run.IssuesCount = outcome.IssuesCount
		run.Success = collectErr == nil
		if collectErr != nil {
			run.Error = collectErr.Error()
		}
		recordRun(cmd.Context(), run)

		if collectErr != nil {
			return collectErr
		}
		fmt.Println(outcome)
		return nil
	},
}

var jiraCmd = &cobra.Command{
	Use:   "jira <url>",
	Short: "Download the JIRA bugs of the project matching one repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Jira")
		if err := config.NewCredentialManager().ApplyTo(cfg); err != nil {
			return err
		}
		if err := validate(config.ValidationContextJira, logger); err != nil {
			return err
		}

		outcome, collectErr := issues.NewJiraCollector(jiraConfig(), logger).Collect(cmd.Context(), args[0])

		run := storage.NewRunResult(outcome.Repository)
		run.Stage = storage.StageJira
		run.IssuesCount = outcome.IssuesCount
		run.Success = collectErr == nil
		if collectErr != nil {
			run.Error = collectErr.Error()
		}
		recordRun(cmd.Context(), run)

		if collectErr != nil {
			return collectErr
		}
		if outcome.Project == "" {
			fmt.Printf("%s: no matching JIRA project\n", outcome.Repository)
			return nil
		}
		fmt.Printf("%s: %s bugs in project %s -> %s\n", outcome.Repository,
			humanize.Comma(int64(outcome.IssuesCount)), outcome.Project, outcome.OutputPath)
		return nil
	},
}

var (
	sizesRepoList string
	sizesOut      string
)

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "Look up the GitHub size of every repository in the list",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := registry.For("Sizes")
		if sizesRepoList != "" {
			cfg.Paths.RepoList = sizesRepoList
		}
		if sizesOut != "" {
			cfg.Paths.SizesOutput = sizesOut
		}
		if err := config.NewCredentialManager().ApplyTo(cfg); err != nil {
			return err
		}
		if err := validate(config.ValidationContextIssues, logger); err != nil {
			return err
		}

		repos, err := repolist.Load(cfg.Paths.RepoList)
		if err != nil {
			return err
		}
		collector, err := issues.NewGitHubCollector(githubConfig(), logger)
		if err != nil {
			return err
		}
		report, err := collector.Sizes(cmd.Context(), repos)
		if err != nil {
			return err
		}
		if err := issues.WriteSizes(cfg.Paths.SizesOutput, report); err != nil {
			return err
		}

		tbl := table.NewWriter()
		tbl.SetOutputMirror(os.Stdout)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Owner", "Repository", "Size"})
		for _, repo := range report.Repos {
			size := "failed"
			if repo.Size >= 0 {
				size = humanize.Bytes(uint64(repo.Size) * 1024)
			}
			tbl.AppendRow(table.Row{repo.Owner, repo.Name, size})
		}
		tbl.AppendFooter(table.Row{"", "Total", humanize.Bytes(uint64(report.TotalSize) * 1024)})
		tbl.Render()
		return nil
	},
}

func init() {
	issuesCmd.Flags().BoolVar(&issuesBugOnly, "bug-only", false, "keep only issues whose first label is \"bug\"")
	sizesCmd.Flags().StringVar(&sizesRepoList, "repos", "", "repository list file (default from config)")
	sizesCmd.Flags().StringVar(&sizesOut, "out", "", "output JSON path (default from config)")
}

// recordRun saves run in the run index; failures only warn
func recordRun(ctx context.Context, run *storage.RunResult) {
	logger := registry.For("Storage")
	store, err := openStore(logger)
	if err != nil {
		logger.WithError(err).Warn("Run index unavailable")
		return
	}
	defer store.Close()
	if err := store.SaveRun(ctx, run); err != nil {
		logger.WithError(err).Warn("Failed to record run result")
	}
}
