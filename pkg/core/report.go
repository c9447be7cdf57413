package core

import (
	"time"

	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// ScanReport is the result of one scan pass. Issues are already filtered,
// deduplicated and severity-adjusted.
type ScanReport struct {
	ProjectPath    string       `json:"projectPath"`
	StartedAt      time.Time    `json:"startedAt"`
	CompletedAt    time.Time    `json:"completedAt"`
	Issues         []Issue      `json:"issues"`
	ScanResults    []ScanResult `json:"scanResults"`
	BuildSucceeded *bool        `json:"buildSucceeded,omitempty"`
	AffectedFiles  []string     `json:"affectedFiles"`
}

// Summary counts the report's issues by severity.
func (r *ScanReport) Summary() severity.Summary {
	return SummarizeIssues(r.Issues)
}

// Duration returns the wall time of the scan.
func (r *ScanReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// PipelineReport is the result of a fix pass. RemainingIssues holds the
// normalized post-fix issues that AfterIssues counts; ScanResults keep the
// raw per-scanner output.
type PipelineReport struct {
	ProjectPath     string           `json:"projectPath"`
	StartedAt       time.Time        `json:"startedAt"`
	CompletedAt     time.Time        `json:"completedAt"`
	BeforeIssues    severity.Summary `json:"beforeIssues"`
	AfterIssues     severity.Summary `json:"afterIssues"`
	RemainingIssues []Issue          `json:"remainingIssues,omitempty"`
	ScanResults     []ScanResult     `json:"scanResults"`
	FixResults      []FixResult      `json:"fixResults"`
	BuildSucceeded  *bool            `json:"buildSucceeded,omitempty"`
}

// ReductionPercentage returns how much the total issue count dropped, in percent.
// Zero when there were no issues before the fix.
func (r *PipelineReport) ReductionPercentage() float64 {
	if r.BeforeIssues.Total <= 0 {
		return 0
	}
	return float64(r.BeforeIssues.Total-r.AfterIssues.Total) / float64(r.BeforeIssues.Total) * 100
}

// Duration returns the wall time from the original scan to the end of the fix.
func (r *PipelineReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// AfterIssueList returns the raw post-fix issues of all scan results, before
// filtering and deduplication.
func (r *PipelineReport) AfterIssueList() []Issue {
	var issues []Issue
	for _, sr := range r.ScanResults {
		issues = append(issues, sr.Issues...)
	}
	return issues
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
