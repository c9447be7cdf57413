package golangci

import (
	"encoding/json"
	"fmt"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Report is the top level of `golangci-lint run --out-format json`.
type Report struct {
	Issues []Issue `json:"Issues"`
}

// Issue is one reported problem.
type Issue struct {
	FromLinter string   `json:"FromLinter"`
	Text       string   `json:"Text"`
	Severity   string   `json:"Severity"`
	Pos        Position `json:"Pos"`
}

// Position locates an issue.
type Position struct {
	Filename string `json:"Filename"`
	Line     int    `json:"Line"`
	Column   int    `json:"Column"`
}

// ParseJSON converts golangci-lint's JSON output into issues.
func ParseJSON(data []byte, projectPath string) ([]core.Issue, error) {
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse golangci-lint output: %w", err)
	}

	issues := make([]core.Issue, 0, len(report.Issues))
	for _, i := range report.Issues {
		linter := i.FromLinter
		if linter == "" {
			linter = "unknown"
		}
		issues = append(issues, core.NewIssue(
			Name, linter, i.Text, SeverityFor(i.Severity, linter),
			core.AbsolutePath(projectPath, i.Pos.Filename),
			i.Pos.Line, i.Pos.Column,
		))
	}
	return issues, nil
}

// SeverityFor uses the severity golangci-lint reported when it is
// configured, otherwise a default per linter.
func SeverityFor(reported, linter string) severity.Level {
	if level := severity.FromString(reported); level != severity.Unknown {
		return level
	}
	switch linter {
	case "typecheck":
		return severity.Critical
	case "errcheck", "govet", "staticcheck", "gosec", "ineffassign":
		return severity.High
	case "gofmt", "goimports", "misspell", "whitespace", "godot":
		return severity.Low
	default:
		return severity.Medium
	}
}
