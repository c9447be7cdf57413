// Package core provides the data model and capability contracts of the
// check/fix pipeline. Tool adapters implement Scanner and Fixer; the pipeline
// engine depends only on these interfaces.
package core

import (
	"context"
	"slices"
)

// =============================================================================
// Scanner Interface - inspects a project without mutating it
// =============================================================================

// Scanner is implemented by every analysis tool adapter.
type Scanner interface {
	// Name returns the scanner name (e.g., "eslint", "ruff")
	Name() string

	// SupportedProjectTypes returns the project types the scanner applies to
	SupportedProjectTypes() []ProjectType

	// IsAvailable checks if the underlying tool can be run
	IsAvailable(ctx context.Context) bool

	// Scan inspects the project and returns its issues.
	// Failures are reported as ToolExecution errors.
	Scan(ctx context.Context, projectPath string) (*ScanResult, error)
}

// =============================================================================
// Fixer Interface - mutates project files in place
// =============================================================================

// Fixer is implemented by tools that can rewrite files to resolve issues.
type Fixer interface {
	// Name returns the fixer name
	Name() string

	// IsAvailable checks if the underlying tool can be run
	IsAvailable(ctx context.Context) bool

	// Fix rewrites files in the project and reports what changed
	Fix(ctx context.Context, projectPath string) (*FixResult, error)
}

// ScannerFixer is a tool that both scans and fixes.
type ScannerFixer interface {
	Scanner
	Fixer
}

// IssueFixer is an optional Fixer extension. The engine calls FixIssues
// instead of Fix and passes the issues of the last scan report.
type IssueFixer interface {
	Fixer
	FixIssues(ctx context.Context, projectPath string, issues []Issue) (*FixResult, error)
}

// SupportsProjectType reports whether s should run for a project of type pt.
func SupportsProjectType(s Scanner, pt ProjectType) bool {
	types := s.SupportedProjectTypes()
	if slices.Contains(types, pt) {
		return true
	}
	return pt == ProjectTypeMixed && slices.Contains(types, ProjectTypeMixed)
}

// =============================================================================
// Observer Interface - receives pipeline events
// =============================================================================

// Observer receives engine events. Calls are made synchronously from the
// goroutine running the operation. Implementations may read engine state
// (Phase, LastScanReport) but must not start another operation.
type Observer interface {
	OnPhaseChange(phase ScanPhase)
	OnLog(entry LogEntry)
	OnProgress(fraction float64)
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs struct {
	PhaseChange func(phase ScanPhase)
	Log         func(entry LogEntry)
	Progress    func(fraction float64)
}

func (o ObserverFuncs) OnPhaseChange(phase ScanPhase) {
	if o.PhaseChange != nil {
		o.PhaseChange(phase)
	}
}

func (o ObserverFuncs) OnLog(entry LogEntry) {
	if o.Log != nil {
		o.Log(entry)
	}
}

func (o ObserverFuncs) OnProgress(fraction float64) {
	if o.Progress != nil {
		o.Progress(fraction)
	}
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnPhaseChange(phase ScanPhase) {
	for _, o := range m {
		if o != nil {
			o.OnPhaseChange(phase)
		}
	}
}

func (m MultiObserver) OnLog(entry LogEntry) {
	for _, o := range m {
		if o != nil {
			o.OnLog(entry)
		}
	}
}

func (m MultiObserver) OnProgress(fraction float64) {
	for _, o := range m {
		if o != nil {
			o.OnProgress(fraction)
		}
	}
}

// Ensure implementations satisfy the interface
var (
	_ Observer = ObserverFuncs{}
	_ Observer = MultiObserver(nil)
)
