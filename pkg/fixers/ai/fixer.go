package ai

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
)

const (
	// Name is the fixer name.
	Name = "AI Auto-Fix"

	// DefaultMaxIssues caps the issues handled per run.
	DefaultMaxIssues = 20
)

// Completer returns the fixed content of a file. *Client implements it.
type Completer interface {
	RequestFix(ctx context.Context, issue core.Issue, content string, related ...core.Issue) (string, error)
}

// Fixer rewrites files through a Completer, one request per file.
type Fixer struct {
	completer Completer
	maxIssues int
	logger    core.Logger
}

// FixerOption configures a Fixer.
type FixerOption func(*Fixer)

// WithMaxIssues caps the issues handled per run (values <= 0 keep the default).
func WithMaxIssues(n int) FixerOption {
	return func(f *Fixer) {
		if n > 0 {
			f.maxIssues = n
		}
	}
}

// WithLogger sets the logger for per-file failures.
func WithLogger(l core.Logger) FixerOption {
	return func(f *Fixer) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFixer creates a fixer. A nil completer gives a fixer that is never
// available.
func NewFixer(c Completer, opts ...FixerOption) *Fixer {
	f := &Fixer{completer: c, maxIssues: DefaultMaxIssues, logger: &core.NopLogger{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New builds the client and fixer for an API key.
func New(cfg Config, maxIssues int, clientOpts ...ClientOption) (*Fixer, error) {
	client, err := NewClient(cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	return NewFixer(client, WithMaxIssues(maxIssues), WithLogger(client.logger)), nil
}

func (f *Fixer) Name() string { return Name }

// IsAvailable reports whether a client is configured; NewClient refuses an
// empty API key.
func (f *Fixer) IsAvailable(ctx context.Context) bool {
	return f.completer != nil
}

// Fix does nothing without issues to work from; the engine calls
// FixIssues with the last scan report.
func (f *Fixer) Fix(ctx context.Context, projectPath string) (*core.FixResult, error) {
	return &core.FixResult{Tool: Name, Details: []core.FixDetail{}}, nil
}

// FixIssues asks for a fix per file for the highest severity unfixed
// issues, up to the cap. A file is written only when the reply is
// non-empty and differs from the current content; per-file failures are
// logged and skipped.
func (f *Fixer) FixIssues(ctx context.Context, projectPath string, issues []core.Issue) (*core.FixResult, error) {
	start := time.Now()
	if f.completer == nil {
		return nil, errors.ErrMissingAPIKey
	}

	selected := Prioritize(issues, f.maxIssues)
	files, groups := groupByFile(selected)

	result := &core.FixResult{Tool: Name, TotalFiles: len(files)}
	byRule := make(map[string]int)
	var rules []string

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group := groups[path]

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			f.logger.Warn("AI fix: cannot read %s", core.RelativePath(projectPath, path))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			f.logger.Warn("AI fix: cannot read %s: %v", core.RelativePath(projectPath, path), err)
			continue
		}
		content := string(data)

		fixed, err := f.completer.RequestFix(ctx, group[0], content, group...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("AI fix failed for %s: %v", core.RelativePath(projectPath, path), err)
			continue
		}
		if fixed == "" || fixed == content {
			continue
		}
		if err := os.WriteFile(path, []byte(fixed), info.Mode().Perm()); err != nil {
			f.logger.Warn("AI fix: cannot write %s: %v", core.RelativePath(projectPath, path), err)
			continue
		}

		result.FixedFiles++
		result.FixedIssueCount += len(group)
		for _, issue := range group {
			if byRule[issue.Rule] == 0 {
				rules = append(rules, issue.Rule)
			}
			byRule[issue.Rule]++
		}
	}

	result.Details = make([]core.FixDetail, 0, len(rules))
	for _, rule := range rules {
		result.Details = append(result.Details, core.FixDetail{Rule: rule, Count: byRule[rule], Description: "rewritten by " + Name})
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Prioritize returns at most limit unfixed issues, highest severity first.
// Equal severities keep their order.
func Prioritize(issues []core.Issue, limit int) []core.Issue {
	pending := make([]core.Issue, 0, len(issues))
	for _, issue := range issues {
		if !issue.IsFixed {
			pending = append(pending, issue)
		}
	}
	slices.SortStableFunc(pending, func(a, b core.Issue) int {
		return b.Severity.Priority() - a.Severity.Priority()
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

func groupByFile(issues []core.Issue) ([]string, map[string][]core.Issue) {
	var order []string
	groups := make(map[string][]core.Issue)
	for _, issue := range issues {
		if issue.FilePath == "" {
			continue
		}
		if _, ok := groups[issue.FilePath]; !ok {
			order = append(order, issue.FilePath)
		}
		groups[issue.FilePath] = append(groups[issue.FilePath], issue)
	}
	return order, groups
}

var _ core.IssueFixer = (*Fixer)(nil)
