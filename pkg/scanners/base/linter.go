package base

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
)

// ParseFunc converts a tool's machine-readable output into issues. File
// paths must be absolute; projectPath is given to resolve relative ones.
type ParseFunc func(data []byte, projectPath string) ([]core.Issue, error)

// Linter is a scanner and fixer for tools that report issues as structured
// output and fix them with a flag: scan, fix, then scan again to count what
// changed.
type Linter struct {
	*Tool

	Types      []core.ProjectType // Project types the linter applies to
	ScanArgs   []string           // Arguments producing parseable output
	FixArgs    []string           // Arguments applying fixes in place
	Extensions []string           // Source extensions counted as scanned files
	Parse      ParseFunc

	// Applies reports whether the project has anything for the tool to
	// look at. Nil means always.
	Applies func(projectPath string) bool

	// CombinedOutput parses stderr followed by stdout, for tools that print
	// findings as text on stderr. A non-zero exit that yields no issue is
	// then a failure.
	CombinedOutput bool
}

// Name returns the tool name.
func (l *Linter) Name() string {
	return l.Tool.Name
}

// SupportedProjectTypes returns the project types the linter applies to.
func (l *Linter) SupportedProjectTypes() []core.ProjectType {
	return l.Types
}

// Scan runs the linter and parses its output.
func (l *Linter) Scan(ctx context.Context, projectPath string) (*core.ScanResult, error) {
	start := time.Now()
	if l.Applies != nil && !l.Applies(projectPath) {
		return &core.ScanResult{Scanner: l.Name(), Issues: []core.Issue{}}, nil
	}

	issues, err := l.collect(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	return &core.ScanResult{
		Scanner:      l.Name(),
		Issues:       issues,
		ScannedFiles: l.countFiles(projectPath, issues),
		Duration:     time.Since(start),
	}, nil
}

// Fix applies the linter's fixes and reports how many issues disappeared.
func (l *Linter) Fix(ctx context.Context, projectPath string) (*core.FixResult, error) {
	start := time.Now()
	if len(l.FixArgs) == 0 {
		return nil, fmt.Errorf("%s cannot fix", l.Name())
	}
	if l.Applies != nil && !l.Applies(projectPath) {
		return &core.FixResult{Tool: l.Name()}, nil
	}

	before, err := l.collect(ctx, projectPath)
	if err != nil {
		return nil, err
	}
	if _, err := l.Exec(ctx, projectPath, l.FixArgs...); err != nil {
		return nil, err
	}
	after, err := l.collect(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	return CompareFix(l.Name(), before, after, l.countFiles(projectPath, before), time.Since(start)), nil
}

func (l *Linter) collect(ctx context.Context, projectPath string) ([]core.Issue, error) {
	result, err := l.Exec(ctx, projectPath, l.ScanArgs...)
	if err != nil {
		return nil, err
	}

	out := strings.TrimSpace(result.Stdout)
	if l.CombinedOutput {
		out = strings.TrimSpace(result.Stderr + "\n" + result.Stdout)
	}
	if out == "" {
		if result.Succeeded() {
			return []core.Issue{}, nil
		}
		return nil, l.Failure(result, fmt.Errorf("no output"))
	}

	issues, err := l.Parse([]byte(out), projectPath)
	if err != nil {
		return nil, l.Failure(result, err)
	}
	if l.CombinedOutput && len(issues) == 0 && !result.Succeeded() {
		return nil, l.Failure(result, fmt.Errorf("exit %d without findings", result.ExitCode))
	}
	return issues, nil
}

func (l *Linter) countFiles(projectPath string, issues []core.Issue) int {
	if len(l.Extensions) > 0 {
		return detect.CountFiles(projectPath, l.Extensions...)
	}
	return UniqueFiles(issues)
}
