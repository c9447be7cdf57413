package ruff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Diagnostic is one entry of `ruff check --output-format json`.
type Diagnostic struct {
	Code     *string  `json:"code"`
	Message  string   `json:"message"`
	Filename string   `json:"filename"`
	Location Location `json:"location"`
	URL      string   `json:"url,omitempty"`
}

// Location is a 1-based source position.
type Location struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// ParseJSON converts Ruff's JSON output into issues.
func ParseJSON(data []byte, projectPath string) ([]core.Issue, error) {
	var diags []Diagnostic
	if err := json.Unmarshal(data, &diags); err != nil {
		return nil, fmt.Errorf("parse ruff output: %w", err)
	}

	issues := make([]core.Issue, 0, len(diags))
	for _, d := range diags {
		code := "unknown"
		if d.Code != nil && *d.Code != "" {
			code = *d.Code
		}
		issues = append(issues, core.NewIssue(
			Name, code, d.Message, SeverityForCode(code),
			core.AbsolutePath(projectPath, d.Filename),
			d.Location.Row, d.Location.Column,
		))
	}
	return issues, nil
}

// SeverityForCode maps a rule code to a severity by its prefix:
// pycodestyle errors and pyflakes are high, warnings medium, complexity and
// naming low.
func SeverityForCode(code string) severity.Level {
	switch {
	case strings.HasPrefix(code, "E"), strings.HasPrefix(code, "F"):
		return severity.High
	case strings.HasPrefix(code, "W"):
		return severity.Medium
	case strings.HasPrefix(code, "C"), strings.HasPrefix(code, "N"):
		return severity.Low
	default:
		return severity.Medium
	}
}
