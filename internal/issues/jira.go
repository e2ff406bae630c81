package issues

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/git"
	jira "github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultJiraBaseURL is the Apache Software Foundation JIRA site root
const DefaultJiraBaseURL = "https://issues.apache.org/jira/"

const (
	jiraPageSize   = 50
	jiraRESTSuffix = "rest/api/2/"
)

// JiraConfig configures the JIRA collector. BaseURL is the site root; a
// trailing rest/api/2 path is accepted and stripped.
type JiraConfig struct {
	BaseURL   string
	Token     string
	RateLimit float64
	OutputDir string
}

// JiraOutcome is the result of collecting bugs for one repository. Project
// is empty when no JIRA project matches the repository.
type JiraOutcome struct {
	Repository  string
	Project     string
	IssuesCount int
	OutputPath  string
}

// JiraCollector downloads Bug issues of the JIRA project matching a repository
type JiraCollector struct {
	client      *jira.Client
	clientErr   error
	rateLimiter *rate.Limiter
	config      JiraConfig
	logger      *logrus.Entry
}

// NewJiraCollector creates a collector. An unusable base URL surfaces as an
// External error from the first call.
func NewJiraCollector(config JiraConfig, logger *logrus.Entry) *JiraCollector {
	config.BaseURL = JiraSiteRoot(config.BaseURL)
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}

	httpClient := &http.Client{}
	if config.Token != "" {
		httpClient = (&jira.BearerAuthTransport{Token: config.Token}).Client()
	}
	httpClient.Timeout = 60 * time.Second

	client, err := jira.NewClient(httpClient, config.BaseURL)
	return &JiraCollector{
		client:      client,
		clientErr:   err,
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		config:      config,
		logger:      logger,
	}
}

// JiraSiteRoot normalises baseURL to a site root ending in "/", defaulting
// to DefaultJiraBaseURL and dropping a rest/api/2 suffix
func JiraSiteRoot(baseURL string) string {
	if baseURL == "" {
		return DefaultJiraBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return strings.TrimSuffix(baseURL, jiraRESTSuffix)
}

// ProjectKeyFor derives the candidate JIRA key of a repository: the last URL
// segment, lower-cased, with hyphens removed
func ProjectKeyFor(repoURL string) string {
	return strings.ReplaceAll(strings.ToLower(git.RepoName(repoURL)), "-", "")
}

// Collect finds the project matching repoURL and writes its Bug issues to
// <OutputDir>/jira_<key>.json
func (c *JiraCollector) Collect(ctx context.Context, repoURL string) (*JiraOutcome, error) {
	key := ProjectKeyFor(repoURL)
	outcome := &JiraOutcome{Repository: git.RepoName(repoURL)}
	logger := c.logger.WithField("repository", outcome.Repository)

	projects, err := c.Projects(ctx)
	if err != nil {
		return outcome, err
	}
	if !projects[key] {
		logger.WithField("key", key).Info("No matching JIRA project")
		return outcome, nil
	}
	outcome.Project = key

	issues, err := c.SearchBugs(ctx, key)
	if err != nil {
		return outcome, err
	}

	path := filepath.Join(c.config.OutputDir, "jira_"+key+".json")
	if err := writeJSON(path, issues); err != nil {
		return outcome, err
	}
	outcome.IssuesCount = len(issues)
	outcome.OutputPath = path

	logger.WithFields(logrus.Fields{
		"project": key,
		"issues":  len(issues),
		"output":  path,
	}).Info("Collected JIRA bug issues")
	return outcome, nil
}

// Projects returns the lower-cased keys of all projects whose key is purely
// alphabetic
func (c *JiraCollector) Projects(ctx context.Context) (map[string]bool, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	list, resp, err := c.client.Project.GetListWithContext(ctx)
	if err != nil {
		return nil, jiraError(err, resp, "list JIRA projects")
	}

	keys := make(map[string]bool, len(*list))
	for _, p := range *list {
		key := strings.ToLower(p.Key)
		if isAlpha(key) {
			keys[key] = true
		}
	}
	return keys, nil
}

// SearchBugs pages through every Bug issue of project
func (c *JiraCollector) SearchBugs(ctx context.Context, project string) ([]jira.Issue, error) {
	jql := fmt.Sprintf("project=%s AND issuetype=Bug", project)

	issues := []jira.Issue{}
	options := &jira.SearchOptions{StartAt: 0, MaxResults: jiraPageSize}
	for {
		if err := c.ready(ctx); err != nil {
			return nil, err
		}

		page, resp, err := c.client.Issue.SearchWithContext(ctx, jql, options)
		if err != nil {
			return nil, jiraError(err, resp, "search %s bugs at %d", project, options.StartAt)
		}
		issues = append(issues, page...)

		maxResults := resp.MaxResults
		if maxResults <= 0 {
			maxResults = jiraPageSize
		}
		if resp.StartAt+maxResults >= resp.Total {
			break
		}
		options.StartAt = resp.StartAt + maxResults
	}
	return issues, nil
}

// ready waits for the rate limiter before a JIRA call
func (c *JiraCollector) ready(ctx context.Context) error {
	if c.clientErr != nil {
		return errors.ExternalErrorf(c.clientErr, "JIRA client for %s", c.config.BaseURL)
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return errors.ExternalErrorf(err, "rate limiter")
	}
	return nil
}

func jiraError(err error, resp *jira.Response, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if resp != nil && resp.Response != nil {
		msg = fmt.Sprintf("%s: status %d", msg, resp.StatusCode)
	}
	return errors.ExternalErrorf(err, "%s", msg)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
