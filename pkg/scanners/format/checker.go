// Package format adapts code formatters whose check mode lists the files
// that would change: Prettier, Ruff Format, Dart Format and gofmt.
package format

import (
	"context"
	"strings"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Rule is the rule name of every formatting issue.
const Rule = "formatting"

// LineFunc extracts a file path from one output line of a check run.
type LineFunc func(line string) (path string, ok bool)

// Checker is a formatter exposed as a scanner and fixer. Each file the
// check run lists becomes one low severity issue.
type Checker struct {
	*base.Tool

	Types      []core.ProjectType
	CheckArgs  []string
	FixArgs    []string
	Extensions []string
	Message    string
	ParseLine  LineFunc
}

func (c *Checker) Name() string { return c.Tool.Name }

func (c *Checker) SupportedProjectTypes() []core.ProjectType { return c.Types }

// Scan lists unformatted files.
func (c *Checker) Scan(ctx context.Context, projectPath string) (*core.ScanResult, error) {
	start := time.Now()
	issues, err := c.check(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	return &core.ScanResult{
		Scanner:      c.Name(),
		Issues:       issues,
		ScannedFiles: detect.CountFiles(projectPath, c.Extensions...),
		Duration:     time.Since(start),
	}, nil
}

// Fix formats the project in place.
func (c *Checker) Fix(ctx context.Context, projectPath string) (*core.FixResult, error) {
	start := time.Now()
	before, err := c.check(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if len(before) > 0 {
		if _, err := c.Exec(ctx, projectPath, c.FixArgs...); err != nil {
			return nil, err
		}
	}
	after, err := c.check(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	return base.CompareFix(c.Name(), before, after, detect.CountFiles(projectPath, c.Extensions...), time.Since(start)), nil
}

func (c *Checker) check(ctx context.Context, projectPath string) ([]core.Issue, error) {
	result, err := c.Exec(ctx, projectPath, c.CheckArgs...)
	if err != nil {
		return nil, err
	}
	return ParseOutput(result.Output(), projectPath, c.Name(), c.Message, c.ParseLine), nil
}

// ParseOutput turns every line accepted by parse into an issue, skipping
// files under detect.SkipDirs and duplicates.
func ParseOutput(output, projectPath, scanner, message string, parse LineFunc) []core.Issue {
	issues := make([]core.Issue, 0)
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		path, ok := parse(strings.TrimSpace(line))
		if !ok || path == "" || inSkippedDir(path) {
			continue
		}
		abs := core.AbsolutePath(projectPath, path)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		issues = append(issues, core.NewIssue(scanner, Rule, message, severity.Low, abs, 0, 0))
	}
	return issues
}

func inSkippedDir(path string) bool {
	parts := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	for _, p := range parts[:len(parts)-1] {
		if detect.IsSkippedDir(p) {
			return true
		}
	}
	return false
}

var _ core.ScannerFixer = (*Checker)(nil)
