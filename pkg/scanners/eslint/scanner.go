// Package eslint adapts ESLint (through npx) as a scanner and fixer for
// JavaScript and TypeScript projects.
package eslint

import (
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	// Name is the scanner name.
	Name = "ESLint"

	// DefaultBinary runs the project-local ESLint when present.
	DefaultBinary = "npx"
)

// Scanner implements core.ScannerFixer for ESLint.
type Scanner struct {
	*base.Linter
}

// NewScanner creates an ESLint scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Linter: &base.Linter{
		Tool:       base.NewTool(Name, DefaultBinary),
		Types:      []core.ProjectType{core.ProjectTypeJavaScript, core.ProjectTypeMixed},
		ScanArgs:   []string{"eslint", ".", "--format", "json"},
		FixArgs:    []string{"eslint", ".", "--fix"},
		Extensions: detect.JavaScriptExtensions,
		Parse:      ParseJSON,
	}}
}

var _ core.ScannerFixer = (*Scanner)(nil)
