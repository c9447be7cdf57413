package gitenv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/exploopio/ohmybug/pkg/core"
)

// GitHubEnv reads GitHub Actions variables and posts review comments.
type GitHubEnv struct {
	accessToken string
	client      *github.Client
	event       githubEvent
	logger      core.Logger
}

// NewGitHub creates a GitHub Actions environment authenticated with
// GITHUB_TOKEN when set. The event payload is loaded from GITHUB_EVENT_PATH.
func NewGitHub(logger core.Logger) *GitHubEnv {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	accessToken := os.Getenv("GITHUB_TOKEN")

	var client *github.Client
	if accessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	g := &GitHubEnv{accessToken: accessToken, client: client, logger: logger}
	if api := os.Getenv("GITHUB_API_URL"); api != "" && api != "https://api.github.com" {
		g.setBaseURL(api)
	}
	g.loadEvent()
	return g
}

func (g *GitHubEnv) setBaseURL(raw string) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	if u, err := url.Parse(raw); err == nil {
		g.client.BaseURL = u
	}
}

// IsActive reports whether the process runs in GitHub Actions.
func (g *GitHubEnv) IsActive() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func (g *GitHubEnv) loadEvent() {
	path := os.Getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		g.logger.Debug("gitenv: cannot read GITHUB_EVENT_PATH: %v", err)
		return
	}
	if err := json.Unmarshal(data, &g.event); err != nil {
		g.logger.Debug("gitenv: cannot parse event payload: %v", err)
	}
}

func (g *GitHubEnv) Provider() string    { return ProviderGitHub }
func (g *GitHubEnv) ProjectName() string { return os.Getenv("GITHUB_REPOSITORY") }

// CommitSha returns the PR head commit in a pull_request run, where
// GITHUB_SHA is the synthetic merge commit, and GITHUB_SHA otherwise.
func (g *GitHubEnv) CommitSha() string {
	if g.event.PullRequest != nil && g.event.PullRequest.Head.Sha != "" {
		return g.event.PullRequest.Head.Sha
	}
	return os.Getenv("GITHUB_SHA")
}

func (g *GitHubEnv) CommitBranch() string {
	if ref := os.Getenv("GITHUB_HEAD_REF"); ref != "" {
		return ref
	}
	if os.Getenv("GITHUB_REF_TYPE") == "branch" {
		return os.Getenv("GITHUB_REF_NAME")
	}
	return ""
}

// MergeRequestID returns the PR number.
func (g *GitHubEnv) MergeRequestID() string {
	if g.event.PullRequest != nil && g.event.PullRequest.Number > 0 {
		return strconv.Itoa(g.event.PullRequest.Number)
	}
	return os.Getenv("GITHUB_PR_NUMBER")
}

// TargetBranchSha returns the PR base commit from the event payload.
func (g *GitHubEnv) TargetBranchSha() string {
	if g.event.PullRequest != nil {
		return g.event.PullRequest.Base.Sha
	}
	return ""
}

func (g *GitHubEnv) JobURL() string {
	server, repo, run := os.Getenv("GITHUB_SERVER_URL"), os.Getenv("GITHUB_REPOSITORY"), os.Getenv("GITHUB_RUN_ID")
	if server == "" || repo == "" || run == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, run)
}

// CreateMRComment posts c as a single-comment review on the pull request.
func (g *GitHubEnv) CreateMRComment(ctx context.Context, c Comment) error {
	if g.accessToken == "" {
		return fmt.Errorf("GITHUB_TOKEN not set, cannot create PR comment")
	}
	number, err := strconv.Atoi(g.MergeRequestID())
	if err != nil || number <= 0 {
		return ErrNoMergeRequest
	}
	owner, repo, ok := strings.Cut(g.ProjectName(), "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("invalid GITHUB_REPOSITORY: %q", g.ProjectName())
	}

	review := &github.PullRequestReviewRequest{
		Event: github.Ptr("COMMENT"),
		Comments: []*github.DraftReviewComment{{
			Path: github.Ptr(c.Path),
			Line: github.Ptr(c.Line),
			Side: github.Ptr("RIGHT"),
			Body: github.Ptr(c.Body),
		}},
	}
	if sha := g.CommitSha(); sha != "" {
		review.CommitID = github.Ptr(sha)
	}

	if _, _, err := g.client.PullRequests.CreateReview(ctx, owner, repo, number, review); err != nil {
		return fmt.Errorf("create PR comment on %s:%d: %w", c.Path, c.Line, err)
	}
	return nil
}

type githubEvent struct {
	PullRequest *struct {
		Number int `json:"number"`
		Head   struct {
			Ref string `json:"ref"`
			Sha string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
			Sha string `json:"sha"`
		} `json:"base"`
	} `json:"pull_request"`
}

var _ Env = (*GitHubEnv)(nil)
