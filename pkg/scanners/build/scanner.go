// Package build turns compiler diagnostics into issues. It runs the build
// command of every target detect.FindBuildTargets finds and parses the
// Swift, Dart and Go diagnostic formats.
package build

import (
	"context"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
)

// Name is the scanner name.
const Name = "Build Check"

// Scanner implements core.Scanner. It has no fixer side.
type Scanner struct {
	Runner core.CommandRunner
	Logger core.Logger
}

// NewScanner creates a build scanner that runs commands with the default
// runner.
func NewScanner() *Scanner {
	return &Scanner{Runner: core.NewExecRunner(), Logger: &core.NopLogger{}}
}

func (s *Scanner) Name() string { return Name }

func (s *Scanner) SupportedProjectTypes() []core.ProjectType {
	return []core.ProjectType{core.ProjectTypeSwift, core.ProjectTypeFlutter, core.ProjectTypeGo, core.ProjectTypeMixed}
}

// IsAvailable is always true; a missing compiler shows up as a failed
// command, not as diagnostics.
func (s *Scanner) IsAvailable(ctx context.Context) bool { return true }

// Scan builds every target and collects diagnostics. A target whose command
// cannot be started is logged and skipped.
func (s *Scanner) Scan(ctx context.Context, projectPath string) (*core.ScanResult, error) {
	start := time.Now()
	result := &core.ScanResult{Scanner: Name, Issues: []core.Issue{}}

	for _, target := range detect.FindBuildTargets(projectPath) {
		parse, exts := parserFor(target.Kind)
		if parse == nil {
			continue
		}
		out, err := s.Runner.RunShell(ctx, target.Path, target.Command)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.Logger.Warn("build check %s: %v", target.Name(), err)
			continue
		}
		result.Issues = append(result.Issues, parse(out.Output(), target.Path)...)
		result.ScannedFiles += detect.CountFiles(target.Path, exts...)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func parserFor(kind detect.BuildKind) (func(string, string) []core.Issue, []string) {
	switch kind {
	case detect.BuildKindSPM, detect.BuildKindXcodeproj:
		return ParseSwift, detect.SwiftExtensions
	case detect.BuildKindPubspec:
		return ParseDart, detect.DartExtensions
	case detect.BuildKindGo:
		return ParseGo, detect.GoExtensions
	default:
		return nil, nil
	}
}

var _ core.Scanner = (*Scanner)(nil)
