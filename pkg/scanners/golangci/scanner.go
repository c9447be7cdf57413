// Package golangci adapts golangci-lint as a scanner and fixer for Go
// modules.
package golangci

import (
	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const (
	// Name is the scanner name.
	Name = "golangci-lint"

	// DefaultBinary is the golangci-lint executable.
	DefaultBinary = "golangci-lint"
)

// Scanner implements core.ScannerFixer for golangci-lint.
type Scanner struct {
	*base.Linter
}

// NewScanner creates a golangci-lint scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Linter: &base.Linter{
		Tool:       base.NewTool(Name, DefaultBinary),
		Types:      []core.ProjectType{core.ProjectTypeGo, core.ProjectTypeMixed},
		ScanArgs:   []string{"run", "--out-format", "json", "--issues-exit-code", "0", "./..."},
		FixArgs:    []string{"run", "--fix", "--issues-exit-code", "0", "./..."},
		Extensions: detect.GoExtensions,
		Parse:      ParseJSON,
		Applies:    hasGoModule,
	}}
}

// hasGoModule skips mixed projects without a go.mod at the root, where
// golangci-lint would only report a load error.
func hasGoModule(projectPath string) bool {
	for _, t := range detect.FindBuildTargets(projectPath) {
		if t.Kind == detect.BuildKindGo && t.Path == projectPath {
			return true
		}
	}
	return false
}

var _ core.ScannerFixer = (*Scanner)(nil)
