package gitenv

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
)

// DefaultMaxComments caps the comments posted per run.
const DefaultMaxComments = 20

// Commenter posts scan issues as inline comments.
type Commenter struct {
	env     Env
	limiter *rate.Limiter
	max     int
	logger  core.Logger
}

// CommenterOption configures a Commenter.
type CommenterOption func(*Commenter)

// WithMaxComments caps the comments per run (values <= 0 keep the default).
func WithMaxComments(n int) CommenterOption {
	return func(c *Commenter) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithRate limits comment posting to one per interval.
func WithRate(interval time.Duration) CommenterOption {
	return func(c *Commenter) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithCommenterLogger sets the logger for per-comment failures.
func WithCommenterLogger(l core.Logger) CommenterOption {
	return func(c *Commenter) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCommenter creates a commenter posting at most one comment per second,
// well under the secondary rate limits of both providers.
func NewCommenter(env Env, opts ...CommenterOption) *Commenter {
	c := &Commenter{
		env:     env,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		max:     DefaultMaxComments,
		logger:  &core.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommentStats summarizes a Post call.
type CommentStats struct {
	Posted  int
	Failed  int
	Skipped int // Issues without a line or over the cap
}

// Post comments the highest severity issues of report that have a line.
// Individual failures are counted and logged; only a missing PR/MR context
// or a cancelled context is returned as an error.
func (c *Commenter) Post(ctx context.Context, report *core.ScanReport) (CommentStats, error) {
	var stats CommentStats
	if report == nil {
		return stats, errors.ErrNoScanReport
	}
	if c.env == nil || c.env.MergeRequestID() == "" {
		return stats, ErrNoMergeRequest
	}

	selected := SelectIssues(report.Issues, c.max)
	stats.Skipped = len(report.Issues) - len(selected)

	for _, issue := range selected {
		if err := c.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		comment := Comment{
			Path: core.RelativePath(report.ProjectPath, issue.FilePath),
			Line: issue.LineOrZero(),
			Body: FormatComment(issue),
		}
		if err := c.env.CreateMRComment(ctx, comment); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			c.logger.Warn("comment on %s:%d failed: %v", comment.Path, comment.Line, err)
			continue
		}
		stats.Posted++
	}
	return stats, nil
}

// SelectIssues returns up to limit issues that have a line, highest
// severity first. Equal severities keep report order.
func SelectIssues(issues []core.Issue, limit int) []core.Issue {
	out := make([]core.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Line != nil && issue.FilePath != "" {
			out = append(out, issue)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Issue) int {
		return b.Severity.Priority() - a.Severity.Priority()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FormatComment renders the markdown body for one issue.
func FormatComment(issue core.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**[%s]** `%s`", strings.ToUpper(string(issue.Severity)), issue.Rule)
	if issue.Scanner != "" {
		fmt.Fprintf(&b, " (%s)", issue.Scanner)
	}
	b.WriteString("\n\n")
	b.WriteString(issue.Message)
	b.WriteString("\n\n<sub>Reported by OhMyBug</sub>")
	return b.String()
}
