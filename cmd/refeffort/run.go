package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/config"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/effort"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/issues"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/pipeline"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/refminer"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/repolist"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	runRepoList   string
	runSkipIssues bool
	runSkipJira   bool
	runWorkers    int
	runMax        int
	runKeepClones bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline over the repository list",
	Long: `For every repository in the list: download GitHub issues and JIRA bugs,
clone it, run RefactoringMiner and write the effort ledger to
<effort_output_dir>/developer_effort_<repo>.csv. A repository that fails at
any stage is recorded in the run index and the run moves on.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runRepoList, "repos", "", "repository list file (default from config)")
	runCmd.Flags().BoolVar(&runSkipIssues, "skip-issues", false, "skip the GitHub issue download")
	runCmd.Flags().BoolVar(&runSkipJira, "skip-jira", false, "skip the JIRA bug download")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "repositories processed in parallel (default from config)")
	runCmd.Flags().IntVar(&runMax, "max", 0, "process at most this many repositories (default from config)")
	runCmd.Flags().BoolVar(&runKeepClones, "keep-clones", false, "keep cloned working copies")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger := registry.For("Pipeline")
	if runRepoList != "" {
		cfg.Paths.RepoList = runRepoList
	}
	if runWorkers > 0 {
		cfg.Runner.Workers = runWorkers
	}
	if runMax > 0 {
		cfg.Runner.MaxRepositories = runMax
	}
	if runKeepClones {
		cfg.Runner.KeepClones = true
	}

	if !runSkipIssues || !runSkipJira {
		if err := config.NewCredentialManager().ApplyTo(cfg); err != nil {
			return err
		}
	}
	if err := validate(config.ValidationContextRun, logger); err != nil {
		return err
	}

	repos, err := repolist.Load(cfg.Paths.RepoList)
	if err != nil {
		return err
	}

	miner := refminer.NewRunner(cfg.Miner.Binary, cfg.Paths.MinerOutputDir, cfg.Miner.Timeout, registry.For("Miner"))
	if err := miner.CheckPrerequisites(); err != nil {
		return err
	}

	strategy, err := newStrategy(registry.For("Effort"))
	if err != nil {
		return err
	}

	store, err := openStore(registry.For("Storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	var issueCollector pipeline.IssueCollector
	if !runSkipIssues {
		collector, err := issues.NewGitHubCollector(githubConfig(), registry.For("Issues"))
		if err != nil {
			return err
		}
		issueCollector = collector
	}
	var jiraCollector pipeline.JiraCollector
	if !runSkipJira {
		jiraCollector = issues.NewJiraCollector(jiraConfig(), registry.For("Jira"))
	}

	cloneLogger := registry.For("Clone")
	cloner := func(ctx context.Context, url string) (*git.Repository, error) {
		return git.Clone(ctx, url, repoOptions(cloneLogger)...)
	}

	orchestrator := pipeline.NewOrchestrator(
		issueCollector,
		jiraCollector,
		cloner,
		miner,
		effort.NewAggregator(strategy, registry.For("Effort")),
		store,
		pipeline.Options{
			EffortOutputDir: cfg.Paths.EffortOutputDir,
			MaxRepositories: cfg.Runner.MaxRepositories,
			Workers:         cfg.Runner.Workers,
			KeepClones:      cfg.Runner.KeepClones,
		},
		logger,
	)

	summary, err := orchestrator.Run(cmd.Context(), repos)
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(summary *pipeline.Summary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Repository", "Stage", "Result", "Issues", "Ledger rows", "Error"})
	for _, run := range summary.Runs {
		result := "ok"
		switch {
		case !run.Success:
			result = "failed"
		case run.IssuesError != "":
			result = "ok, issues incomplete"
		}
		tbl.AppendRow(table.Row{run.Repository, run.Stage, result, humanize.Comma(int64(run.IssuesCount)),
			humanize.Comma(int64(run.LedgerRows)), runErrors(run)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d ok, %d failed", summary.Succeeded, summary.Failed), "", "", "", "",
		summary.Duration.Round(time.Second).String()})
	tbl.Render()
}

func githubConfig() issues.GitHubConfig {
	return issues.GitHubConfig{
		Token:         cfg.GitHub.Token,
		User:          cfg.GitHub.User,
		BaseURL:       cfg.GitHub.BaseURL,
		RateLimit:     cfg.GitHub.RateLimit,
		RateThreshold: cfg.GitHub.RateThreshold,
		BugOnly:       cfg.GitHub.BugOnly,
		OutputDir:     cfg.Paths.BugIssueDir,
		Workers:       cfg.Runner.Workers,
	}
}

func jiraConfig() issues.JiraConfig {
	return issues.JiraConfig{
		BaseURL:   cfg.Jira.BaseURL,
		Token:     cfg.Jira.Token,
		RateLimit: cfg.Jira.RateLimit,
		OutputDir: cfg.Paths.BugIssueDir,
	}
}

// runErrors joins the stage failure and any issue collection failure
func runErrors(run *storage.RunResult) string {
	switch {
	case run.Error == "":
		return run.IssuesError
	case run.IssuesError == "":
		return run.Error
	default:
		return run.Error + "; " + run.IssuesError
	}
}
