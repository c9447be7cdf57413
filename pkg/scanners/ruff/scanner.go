// Package ruff adapts the Ruff linter as a scanner and fixer for Python
// projects.
package ruff

import (
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	// Name is the scanner name.
	Name = "Ruff"

	// DefaultBinary is the ruff executable.
	DefaultBinary = "ruff"
)

// Scanner implements core.ScannerFixer for Ruff.
type Scanner struct {
	*base.Linter
}

// NewScanner creates a Ruff scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Linter: &base.Linter{
		Tool:       base.NewTool(Name, DefaultBinary),
		Types:      []core.ProjectType{core.ProjectTypePython, core.ProjectTypeMixed},
		ScanArgs:   []string{"check", "--output-format", "json", "."},
		FixArgs:    []string{"check", "--fix", "."},
		Extensions: detect.PythonExtensions,
		Parse:      ParseJSON,
	}}
}

var _ core.ScannerFixer = (*Scanner)(nil)
