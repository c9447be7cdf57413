package format

import (
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/detect"
	"github.com/exploopio/ohmybug/pkg/scanners/base"
)

const prettierGlob = "**/*.{js,jsx,ts,tsx,json,css}"

// NewPrettier checks JavaScript, TypeScript, JSON and CSS with Prettier.
func NewPrettier() *Checker {
	return &Checker{
		Tool:       base.NewTool("Prettier", "npx"),
		Types:      []core.ProjectType{core.ProjectTypeJavaScript, core.ProjectTypeMixed},
		CheckArgs:  []string{"prettier", "--check", "--ignore-path", ".gitignore", prettierGlob},
		FixArgs:    []string{"prettier", "--write", "--ignore-path", ".gitignore", prettierGlob},
		Extensions: detect.JavaScriptExtensions,
		Message:    "File is not formatted",
		ParseLine:  parsePrettierLine,
	}
}

// "[warn] src/app.js"; the closing "[warn] Code style issues found..."
// summary is not a file.
func parsePrettierLine(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "[warn] ")
	if !ok || strings.Contains(rest, "Code style") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// NewRuffFormat checks Python files with `ruff format`.
func NewRuffFormat() *Checker {
	return &Checker{
		Tool:       base.NewTool("Ruff Format", "ruff"),
		Types:      []core.ProjectType{core.ProjectTypePython, core.ProjectTypeMixed},
		CheckArgs:  []string{"format", "--check", "."},
		FixArgs:    []string{"format", "."},
		Extensions: detect.PythonExtensions,
		Message:    "File is not formatted",
		ParseLine:  parseRuffLine,
	}
}

func parseRuffLine(line string) (string, bool) {
	_, path, ok := strings.Cut(line, "Would reformat: ")
	return strings.TrimSpace(path), ok
}

// NewDartFormat checks Dart files with `dart format`.
func NewDartFormat() *Checker {
	return &Checker{
		Tool:       base.NewTool("Dart Format", "dart"),
		Types:      []core.ProjectType{core.ProjectTypeFlutter, core.ProjectTypeMixed},
		CheckArgs:  []string{"format", "--output=none", "--set-exit-if-changed", "."},
		FixArgs:    []string{"format", "."},
		Extensions: detect.DartExtensions,
		Message:    "File needs formatting",
		ParseLine:  parseDartLine,
	}
}

// Dart prints "Changed lib/main.dart" per file and a closing
// "Formatted N files (M changed) in ..." summary.
func parseDartLine(line string) (string, bool) {
	if path, ok := strings.CutPrefix(line, "Changed "); ok {
		return path, strings.HasSuffix(path, ".dart")
	}
	if strings.HasSuffix(line, ".dart") && !strings.Contains(line, "Formatted") && !strings.Contains(line, "Unchanged") {
		return line, true
	}
	return "", false
}

// NewGofmt checks Go files with `gofmt -l`.
func NewGofmt() *Checker {
	return &Checker{
		Tool:       base.NewTool("gofmt", "gofmt"),
		Types:      []core.ProjectType{core.ProjectTypeGo, core.ProjectTypeMixed},
		CheckArgs:  []string{"-l", "."},
		FixArgs:    []string{"-w", "."},
		Extensions: detect.GoExtensions,
		Message:    "File is not gofmt-ed",
		ParseLine:  parseGofmtLine,
	}
}

func parseGofmtLine(line string) (string, bool) {
	return line, strings.HasSuffix(line, ".go")
}
