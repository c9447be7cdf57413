// Package dart adapts the Dart and Flutter analyzers as scanners for Flutter
// projects. Neither tool fixes anything; Dart Format lives with the other
// formatters.
package dart

import (
	"context"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	AnalyzerName        = "Dart Analyzer"
	FlutterAnalyzerName = "Flutter Analyzer"
)

// Scanner runs an analyzer. It wraps a base.Linter without exposing Fix,
// so the registry never registers it as a fixer.
type Scanner struct {
	linter *base.Linter
}

// NewAnalyzer creates a scanner for `dart analyze --format=machine`.
func NewAnalyzer() *Scanner {
	return &Scanner{linter: &base.Linter{
		Tool:           base.NewTool(AnalyzerName, "dart"),
		Types:          []core.ProjectType{core.ProjectTypeFlutter, core.ProjectTypeMixed},
		ScanArgs:       []string{"analyze", "--format=machine"},
		Extensions:     detect.DartExtensions,
		Parse:          ParseMachine,
		CombinedOutput: true,
	}}
}

// NewFlutterAnalyzer creates a scanner for `flutter analyze --no-pub`.
func NewFlutterAnalyzer() *Scanner {
	return &Scanner{linter: &base.Linter{
		Tool:           base.NewTool(FlutterAnalyzerName, "flutter"),
		Types:          []core.ProjectType{core.ProjectTypeFlutter},
		ScanArgs:       []string{"analyze", "--no-pub"},
		Extensions:     detect.DartExtensions,
		Parse:          ParseFlutter,
		CombinedOutput: true,
	}}
}

func (s *Scanner) Name() string                              { return s.linter.Name() }
func (s *Scanner) SupportedProjectTypes() []core.ProjectType { return s.linter.Types }
func (s *Scanner) IsAvailable(ctx context.Context) bool      { return s.linter.IsAvailable(ctx) }

func (s *Scanner) Scan(ctx context.Context, projectPath string) (*core.ScanResult, error) {
	return s.linter.Scan(ctx, projectPath)
}

// BaseTool exposes the tool for registry configuration and health checks.
func (s *Scanner) BaseTool() *base.Tool { return s.linter.Tool }

var _ core.Scanner = (*Scanner)(nil)
