package swiftlint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// Violation is one entry of SwiftLint's JSON reporter.
type Violation struct {
	RuleID    string `json:"rule_id"`
	Reason    string `json:"reason"`
	Severity  string `json:"severity"`
	File      string `json:"file"`
	Line      *int   `json:"line"`
	Character *int   `json:"character"`
	Type      string `json:"type,omitempty"`
}

// ParseJSON converts SwiftLint's JSON output into issues.
func ParseJSON(data []byte, projectPath string) ([]core.Issue, error) {
	var violations []Violation
	if err := json.Unmarshal(data, &violations); err != nil {
		return nil, fmt.Errorf("parse swiftlint output: %w", err)
	}

	issues := make([]core.Issue, 0, len(violations))
	for _, v := range violations {
		sev := severity.Medium
		if strings.EqualFold(v.Severity, "error") {
			sev = severity.High
		}
		issues = append(issues, core.NewIssue(
			Name, v.RuleID, v.Reason, sev,
			core.AbsolutePath(projectPath, v.File),
			deref(v.Line), deref(v.Character),
		))
	}
	return issues, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
