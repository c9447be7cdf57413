package gitenv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabEnv reads GitLab CI variables and posts merge request discussions.
type GitLabEnv struct {
	client *gitlab.Client

	refsOnce sync.Once
	refs     mrRefs
	refsErr  error
}

type mrRefs struct {
	base, start, head string
}

// NewGitLab creates a GitLab CI environment. The API client is built only
// when GITLAB_TOKEN and CI_SERVER_URL are both set.
func NewGitLab() (*GitLabEnv, error) {
	token, server := os.Getenv("GITLAB_TOKEN"), os.Getenv("CI_SERVER_URL")
	if token == "" || server == "" {
		return &GitLabEnv{}, nil
	}
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(server))
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}
	return &GitLabEnv{client: client}, nil
}

// IsActive reports whether the process runs in GitLab CI.
func (g *GitLabEnv) IsActive() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

func (g *GitLabEnv) Provider() string       { return ProviderGitLab }
func (g *GitLabEnv) ProjectName() string    { return os.Getenv("CI_PROJECT_PATH") }
func (g *GitLabEnv) CommitSha() string      { return os.Getenv("CI_COMMIT_SHA") }
func (g *GitLabEnv) MergeRequestID() string { return os.Getenv("CI_MERGE_REQUEST_IID") }
func (g *GitLabEnv) JobURL() string         { return os.Getenv("CI_JOB_URL") }

// TargetBranchSha returns the MR diff base.
func (g *GitLabEnv) TargetBranchSha() string {
	return os.Getenv("CI_MERGE_REQUEST_DIFF_BASE_SHA")
}

func (g *GitLabEnv) CommitBranch() string {
	if b := os.Getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"); b != "" {
		return b
	}
	return os.Getenv("CI_COMMIT_BRANCH")
}

// diffRefs fetches the merge request's diff refs once per run.
func (g *GitLabEnv) diffRefs(ctx context.Context, project string, mr int) (mrRefs, error) {
	g.refsOnce.Do(func() {
		m, _, err := g.client.MergeRequests.GetMergeRequest(project, mr, nil, gitlab.WithContext(ctx))
		if err != nil {
			g.refsErr = fmt.Errorf("get merge request: %w", err)
			return
		}
		g.refs = mrRefs{base: m.DiffRefs.BaseSha, start: m.DiffRefs.StartSha, head: m.DiffRefs.HeadSha}
	})
	return g.refs, g.refsErr
}

// CreateMRComment opens a discussion on the new side of the diff. GitLab
// rejects positions on unchanged lines without old_line, so a 400 is
// retried once with the line set on both sides.
func (g *GitLabEnv) CreateMRComment(ctx context.Context, c Comment) error {
	if g.client == nil {
		return errors.New("GitLab client not initialized, GITLAB_TOKEN may not be set")
	}
	mr, err := strconv.Atoi(g.MergeRequestID())
	if err != nil || mr <= 0 {
		return ErrNoMergeRequest
	}
	project := os.Getenv("CI_PROJECT_ID")
	if project == "" {
		return errors.New("CI_PROJECT_ID not set")
	}

	refs, err := g.diffRefs(ctx, project, mr)
	if err != nil {
		return err
	}

	position := gitlab.PositionOptions{
		BaseSHA:      gitlab.Ptr(refs.base),
		StartSHA:     gitlab.Ptr(refs.start),
		HeadSHA:      gitlab.Ptr(refs.head),
		OldPath:      gitlab.Ptr(c.Path),
		NewPath:      gitlab.Ptr(c.Path),
		PositionType: gitlab.Ptr("text"),
		NewLine:      gitlab.Ptr(c.Line),
	}
	opts := &gitlab.CreateMergeRequestDiscussionOptions{Body: gitlab.Ptr(c.Body), Position: &position}

	_, res, err := g.client.Discussions.CreateMergeRequestDiscussion(project, mr, opts, gitlab.WithContext(ctx))
	if err != nil && res != nil && res.StatusCode == http.StatusBadRequest {
		position.OldLine = gitlab.Ptr(c.Line)
		_, _, err = g.client.Discussions.CreateMergeRequestDiscussion(project, mr, opts, gitlab.WithContext(ctx))
	}
	if err != nil {
		return fmt.Errorf("create MR discussion on %s:%d: %w", c.Path, c.Line, err)
	}
	return nil
}

var _ Env = (*GitLabEnv)(nil)
