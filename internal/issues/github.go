// Package issues downloads bug issue data from GitHub and JIRA.
package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// GitHubConfig configures the GitHub collector
type GitHubConfig struct {
	Token   string
	User    string
	BaseURL string // empty = api.github.com
	// RateLimit is the steady request rate in requests per second
	RateLimit float64
	// RateThreshold is the remaining-quota level below which requests are
	// spread over the time left until the quota resets
	RateThreshold int
	BugOnly       bool
	OutputDir     string
	Workers       int
}

// Outcome is the result of collecting issues for one repository
type Outcome struct {
	Repository  string
	GitHubITS   bool
	IssuesCount int
	OutputPath  string
}

// GitHubCollector wraps the GitHub API client with rate limiting
type GitHubCollector struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	config      GitHubConfig
	logger      *logrus.Entry
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewGitHubCollector creates a collector
func NewGitHubCollector(config GitHubConfig, logger *logrus.Entry) (*GitHubCollector, error) {
	client := github.NewClient(nil)
	if config.Token != "" {
		client = client.WithAuthToken(config.Token)
	}
	if config.BaseURL != "" {
		base := config.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.ConfigErrorf("invalid GitHub base URL %q: %v", config.BaseURL, err)
		}
		client.BaseURL = u
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	return &GitHubCollector{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		config:      config,
		logger:      logger,
		sleep:       sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Collect downloads every issue of the repository at repoURL and writes them
// to <OutputDir>/<repo>.json. A repository with issues disabled produces no
// file and GitHubITS=false.
func (c *GitHubCollector) Collect(ctx context.Context, repoURL string) (*Outcome, error) {
	owner, name, err := git.ParseRepoURL(repoURL)
	if err != nil {
		return &Outcome{Repository: git.RepoName(repoURL)}, errors.ExternalErrorf(err, "parse repository URL")
	}
	outcome := &Outcome{Repository: name}
	logger := c.logger.WithField("repository", owner+"/"+name)

	repo, err := c.fetchRepository(ctx, owner, name)
	if err != nil {
		return outcome, err
	}
	outcome.GitHubITS = repo.GetHasIssues()
	if !outcome.GitHubITS {
		logger.Info("Repository does not use GitHub issues")
		return outcome, nil
	}

	issues, err := c.fetchIssues(ctx, owner, name)
	if err != nil {
		return outcome, err
	}
	if c.config.BugOnly {
		issues = filterBugs(issues)
	}

	path := filepath.Join(c.config.OutputDir, name+".json")
	if err := writeJSON(path, issues); err != nil {
		return outcome, err
	}

	outcome.IssuesCount = len(issues)
	outcome.OutputPath = path
	logger.WithFields(logrus.Fields{
		"issues": len(issues),
		"output": path,
	}).Info("Collected GitHub issues")
	return outcome, nil
}

func (c *GitHubCollector) fetchRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.ExternalErrorf(err, "rate limiter")
	}

	repo, resp, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, errors.ExternalErrorf(err, "fetch repository %s/%s", owner, name)
	}
	if err := c.respectRateLimit(ctx, resp); err != nil {
		return nil, err
	}
	return repo, nil
}

// fetchIssues lists issues in every state, following pagination. The issues
// endpoint also returns pull requests; those are dropped.
func (c *GitHubCollector) fetchIssues(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var all []*github.Issue
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.ExternalErrorf(err, "rate limiter")
		}

		page, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, errors.ExternalErrorf(err, "list issues of %s/%s", owner, name)
		}

		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, issue)
		}

		if err := c.respectRateLimit(ctx, resp); err != nil {
			return nil, err
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []*github.Issue{}
	}
	return all, nil
}

// respectRateLimit sleeps when the remaining quota drops below the threshold
func (c *GitHubCollector) respectRateLimit(ctx context.Context, resp *github.Response) error {
	if resp == nil {
		return nil
	}
	remaining := resp.Rate.Remaining
	if remaining >= c.config.RateThreshold {
		return nil
	}

	wait := rateSleep(remaining, time.Until(resp.Rate.Reset.Time))
	c.logger.WithFields(logrus.Fields{
		"remaining": remaining,
		"limit":     resp.Rate.Limit,
		"sleep":     wait,
	}).Warn("GitHub rate limit low, slowing down")

	if err := c.sleep(ctx, wait); err != nil {
		return errors.ExternalErrorf(err, "waiting for rate limit")
	}
	return nil
}

// rateSleep spreads the remaining quota over the time until reset. Without a
// usable reset time or quota it falls back to five seconds.
func rateSleep(remaining int, untilReset time.Duration) time.Duration {
	if remaining <= 0 || untilReset <= 0 {
		return 5 * time.Second
	}
	return untilReset/time.Duration(remaining) + 100*time.Millisecond
}

// filterBugs keeps issues whose first label is "bug"
func filterBugs(issues []*github.Issue) []*github.Issue {
	bugs := make([]*github.Issue, 0, len(issues))
	for _, issue := range issues {
		if len(issue.Labels) > 0 && strings.EqualFold(issue.Labels[0].GetName(), "bug") {
			bugs = append(bugs, issue)
		}
	}
	return bugs
}

// RepoSize is one entry of the sizes report. Size is in kilobytes as reported
// by GitHub, -1 when the lookup failed.
type RepoSize struct {
	Owner  string `json:"RepositoryOwner"`
	Name   string `json:"RepositoryName"`
	Size   int    `json:"size"`
	Result string `json:"Result,omitempty"`
}

// SizesReport is the sizes of a repository list, ascending by size
type SizesReport struct {
	TotalSize int
	Repos     []RepoSize
}

// MarshalJSON writes the total as the first array element
func (r SizesReport) MarshalJSON() ([]byte, error) {
	items := make([]interface{}, 0, len(r.Repos)+1)
	items = append(items, map[string]int{"TotalSize": r.TotalSize})
	for _, repo := range r.Repos {
		items = append(items, repo)
	}
	return json.Marshal(items)
}

// Sizes looks up the size of every repository. Lookups run concurrently; a
// failed lookup is recorded with size -1 and does not stop the others.
func (c *GitHubCollector) Sizes(ctx context.Context, repoURLs []string) (*SizesReport, error) {
	sizes := make([]RepoSize, len(repoURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Workers)
	for i, repoURL := range repoURLs {
		g.Go(func() error {
			owner, name, err := git.ParseRepoURL(repoURL)
			if err != nil {
				c.logger.WithError(err).WithField("url", repoURL).Warn("Skipping unparseable repository URL")
				sizes[i] = RepoSize{Name: repoURL, Size: -1, Result: "Fail"}
				return nil
			}

			repo, err := c.fetchRepository(gctx, owner, name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.WithError(err).WithField("repository", owner+"/"+name).Warn("Size lookup failed")
				sizes[i] = RepoSize{Owner: owner, Name: name, Size: -1, Result: "Fail"}
				return nil
			}
			sizes[i] = RepoSize{Owner: owner, Name: name, Size: repo.GetSize()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.ExternalErrorf(err, "repository sizes")
	}

	report := &SizesReport{Repos: sizes}
	for _, s := range sizes {
		if s.Size > 0 {
			report.TotalSize += s.Size
		}
	}
	sort.SliceStable(report.Repos, func(i, j int) bool { return report.Repos[i].Size < report.Repos[j].Size })
	return report, nil
}

// WriteSizes writes report to path as indented JSON
func WriteSizes(path string, report *SizesReport) error {
	return writeJSON(path, report)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.OutputWriteFailuref(err, "encode %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.OutputWriteFailuref(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.OutputWriteFailuref(err, "write %s", path)
	}
	return nil
}

func (o *Outcome) String() string {
	return fmt.Sprintf("%s: github_its=%t issues=%d", o.Repository, o.GitHubITS, o.IssuesCount)
}
