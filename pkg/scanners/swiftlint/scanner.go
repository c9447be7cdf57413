// Package swiftlint adapts SwiftLint as a scanner and fixer for Swift
// projects.
package swiftlint

import (
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	Name          = "SwiftLint"
	DefaultBinary = "swiftlint"
)

// excludes are passed on both scan and fix so generated and vendored
// sources are never touched.
var excludes = []string{
	"--exclude", ".build",
	"--exclude", "DerivedData",
	"--exclude", "Pods",
	"--exclude", ".dart_tool",
}

type Scanner struct {
	*base.Linter
}

// NewScanner creates a SwiftLint scanner with default settings.
func NewScanner() *Scanner {
	scan := append([]string{"lint", "--reporter", "json", "--quiet"}, excludes...)
	fix := append([]string{"lint", "--fix", "--quiet"}, excludes...)
	return &Scanner{Linter: &base.Linter{
		Tool:       base.NewTool(Name, DefaultBinary),
		Types:      []core.ProjectType{core.ProjectTypeSwift, core.ProjectTypeMixed},
		ScanArgs:   scan,
		FixArgs:    fix,
		Extensions: detect.SwiftExtensions,
		Parse:      ParseJSON,
	}}
}

var _ core.ScannerFixer = (*Scanner)(nil)
