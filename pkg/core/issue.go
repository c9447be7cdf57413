package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// =============================================================================
// Issue - a single finding reported by a scanner
// =============================================================================

// Issue is one finding. Issues are treated as immutable values: the
// normalizer returns adjusted copies instead of mutating them.
type Issue struct {
	ID       string         `json:"id"`
	Rule     string         `json:"rule"`
	Message  string         `json:"message"`
	Severity severity.Level `json:"severity"`
	FilePath string         `json:"filePath"`
	Line     *int           `json:"line,omitempty"`
	Column   *int           `json:"column,omitempty"`
	Scanner  string         `json:"scanner"`
	IsFixed  bool           `json:"isFixed"`
}

// NewIssue creates an issue with a fresh identifier. Line and column values
// <= 0 are treated as absent.
func NewIssue(scanner, rule, message string, sev severity.Level, filePath string, line, column int) Issue {
	return Issue{
		ID:       uuid.NewString(),
		Rule:     rule,
		Message:  message,
		Severity: sev,
		FilePath: filePath,
		Line:     optionalPosition(line),
		Column:   optionalPosition(column),
		Scanner:  scanner,
	}
}

func optionalPosition(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

// LineOrZero returns the line number, or 0 when the issue has none.
func (i Issue) LineOrZero() int {
	if i.Line == nil {
		return 0
	}
	return *i.Line
}

// ColumnOrZero returns the column number, or 0 when the issue has none.
func (i Issue) ColumnOrZero() int {
	if i.Column == nil {
		return 0
	}
	return *i.Column
}

// WithSeverity returns a copy of the issue with a different severity.
func (i Issue) WithSeverity(level severity.Level) Issue {
	i.Severity = level
	return i
}

// SummarizeIssues counts issues by severity.
func SummarizeIssues(issues []Issue) severity.Summary {
	var s severity.Summary
	for _, issue := range issues {
		s.Add(issue.Severity)
	}
	return s
}

// AffectedFiles returns the unique file paths of the issues in first-seen order.
func AffectedFiles(issues []Issue) []string {
	seen := make(map[string]struct{}, len(issues))
	files := make([]string, 0, len(issues))
	for _, issue := range issues {
		if _, ok := seen[issue.FilePath]; ok {
			continue
		}
		seen[issue.FilePath] = struct{}{}
		files = append(files, issue.FilePath)
	}
	return files
}

// =============================================================================
// ScanResult / FixResult - output of one tool invocation
// =============================================================================

// ScanResult is one scanner's output for one scan pass.
type ScanResult struct {
	Scanner      string        `json:"scanner"`
	Issues       []Issue       `json:"issues"`
	FixedCount   int           `json:"fixedCount"`
	ScannedFiles int           `json:"scannedFiles"`
	Duration     time.Duration `json:"duration"`
}

// TotalCount returns the number of issues.
func (r *ScanResult) TotalCount() int {
	return len(r.Issues)
}

// CriticalCount returns the number of critical issues.
func (r *ScanResult) CriticalCount() int {
	return r.count(severity.Critical)
}

// HighCount returns the number of high issues.
func (r *ScanResult) HighCount() int {
	return r.count(severity.High)
}

// MediumCount returns the number of medium issues.
func (r *ScanResult) MediumCount() int {
	return r.count(severity.Medium)
}

func (r *ScanResult) count(level severity.Level) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == level {
			n++
		}
	}
	return n
}

// MarshalJSON encodes Duration as fractional seconds.
func (r ScanResult) MarshalJSON() ([]byte, error) {
	type alias ScanResult
	return json.Marshal(struct {
		alias
		Duration float64 `json:"duration"`
	}{alias: alias(r), Duration: r.Duration.Seconds()})
}

// FixResult is one fixer's outcome.
type FixResult struct {
	Tool            string        `json:"tool"`
	TotalFiles      int           `json:"totalFiles"`
	FixedFiles      int           `json:"fixedFiles"`
	FixedIssueCount int           `json:"fixedIssueCount"`
	Duration        time.Duration `json:"duration"`
	Details         []FixDetail   `json:"details"`
}

// FixDetail breaks a fix result down per rule.
type FixDetail struct {
	Rule        string `json:"rule"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// MarshalJSON encodes Duration as fractional seconds.
func (r FixResult) MarshalJSON() ([]byte, error) {
	type alias FixResult
	details := r.Details
	if details == nil {
		details = []FixDetail{}
	}
	return json.Marshal(struct {
		alias
		Duration float64     `json:"duration"`
		Details  []FixDetail `json:"details"`
	}{alias: alias(r), Duration: r.Duration.Seconds(), Details: details})
}
