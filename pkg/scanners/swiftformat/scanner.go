// Package swiftformat adapts SwiftFormat's lint mode as a scanner and its
// format mode as a fixer for Swift projects.
package swiftformat

import (
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	Name          = "SwiftFormat"
	DefaultBinary = "swiftformat"
)

var excludes = []string{"--exclude", ".build,DerivedData,Pods,.dart_tool"}

// Scanner implements core.ScannerFixer for SwiftFormat.
type Scanner struct {
	*base.Linter
}

// NewScanner creates a SwiftFormat scanner. Lint findings go to stderr and
// the exit status is 1 whenever a file would change.
func NewScanner() *Scanner {
	return &Scanner{Linter: &base.Linter{
		Tool:           base.NewTool(Name, DefaultBinary),
		Types:          []core.ProjectType{core.ProjectTypeSwift, core.ProjectTypeMixed},
		ScanArgs:       append([]string{"--lint", "."}, excludes...),
		FixArgs:        append([]string{"."}, excludes...),
		Extensions:     detect.SwiftExtensions,
		Parse:          ParseLint,
		CombinedOutput: true,
	}}
}

var _ core.ScannerFixer = (*Scanner)(nil)
