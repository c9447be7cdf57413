package eslint

import (
	"encoding/json"
	"fmt"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// File is one entry of ESLint's JSON formatter output.
type File struct {
	FilePath string    `json:"filePath"`
	Messages []Message `json:"messages"`
}

// Message is one lint message.
type Message struct {
	RuleID   *string `json:"ruleId"`
	Message  string  `json:"message"`
	Severity int     `json:"severity"` // 1 = warning, 2 = error
	Line     int     `json:"line"`
	Column   int     `json:"column"`
	Fatal    bool    `json:"fatal,omitempty"`
}

// ParseJSON converts `eslint --format json` output into issues.
func ParseJSON(data []byte, projectPath string) ([]core.Issue, error) {
	var files []File
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse eslint output: %w", err)
	}

	issues := make([]core.Issue, 0)
	for _, f := range files {
		path := core.AbsolutePath(projectPath, f.FilePath)
		for _, m := range f.Messages {
			rule := "unknown"
			if m.RuleID != nil && *m.RuleID != "" {
				rule = *m.RuleID
			} else if m.Fatal {
				rule = "parse_error"
			}
			issues = append(issues, core.NewIssue(Name, rule, m.Message, mapSeverity(m.Severity), path, m.Line, m.Column))
		}
	}
	return issues, nil
}

func mapSeverity(s int) severity.Level {
	if s >= 2 {
		return severity.High
	}
	return severity.Medium
}
