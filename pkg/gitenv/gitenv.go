// Package gitenv detects the CI environment a check runs in and posts scan
// issues as inline pull request (GitHub) or merge request (GitLab) comments.
package gitenv

import (
	"context"

	"github.com/exploopio/ohmybug/pkg/errors"
)

const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
	ProviderLocal  = "local"
)

// ErrNoMergeRequest is returned when comments are requested outside a pull
// or merge request pipeline.
var ErrNoMergeRequest = errors.E(errors.KindInvalidInput, "gitenv", "not in a pull request or merge request context")

// Env describes where the check runs.
type Env interface {
	// Provider returns the provider name (github, gitlab, local)
	Provider() string

	// ProjectName returns owner/repo or the project path
	ProjectName() string

	CommitSha() string
	CommitBranch() string

	// MergeRequestID returns the PR number or MR IID, empty outside one
	MergeRequestID() string

	// TargetBranchSha returns the base commit of the PR/MR, empty outside one
	TargetBranchSha() string

	// JobURL links to the CI job, empty locally
	JobURL() string

	// CreateMRComment posts one inline comment on the current PR/MR.
	CreateMRComment(ctx context.Context, c Comment) error
}

// Comment is an inline review comment.
type Comment struct {
	Path string // Path relative to the repository root, forward slashes
	Line int    // 1-based line on the new side of the diff
	Body string // Markdown body
}

// LocalEnv is used when no CI is detected. It reads the branch and commit
// from the .git directory and cannot post comments.
type LocalEnv struct {
	repoURL   string
	branch    string
	commitSha string
}

// NewLocalEnv creates a local environment with explicit values.
func NewLocalEnv(repoURL, branch, commitSha string) *LocalEnv {
	return &LocalEnv{repoURL: repoURL, branch: branch, commitSha: commitSha}
}

func (l *LocalEnv) Provider() string        { return ProviderLocal }
func (l *LocalEnv) ProjectName() string     { return l.repoURL }
func (l *LocalEnv) CommitSha() string       { return l.commitSha }
func (l *LocalEnv) CommitBranch() string    { return l.branch }
func (l *LocalEnv) MergeRequestID() string  { return "" }
func (l *LocalEnv) TargetBranchSha() string { return "" }
func (l *LocalEnv) JobURL() string          { return "" }

func (l *LocalEnv) CreateMRComment(_ context.Context, _ Comment) error {
	return ErrNoMergeRequest
}

var _ Env = (*LocalEnv)(nil)
