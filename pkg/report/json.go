package report

import (
	"encoding/json"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// ScanExport is the JSON document of a scan report.
type ScanExport struct {
	ProjectPath    string            `json:"projectPath"`
	StartedAt      time.Time         `json:"startedAt"`
	CompletedAt    time.Time         `json:"completedAt"`
	Summary        severity.Summary  `json:"summary"`
	Issues         []core.Issue      `json:"issues"`
	ScanResults    []core.ScanResult `json:"scanResults"`
	AffectedFiles  []string          `json:"affectedFiles"`
	BuildSucceeded *bool             `json:"buildSucceeded,omitempty"`
}

// PipelineExport is the JSON document of a pipeline report.
type PipelineExport struct {
	ProjectPath         string            `json:"projectPath"`
	StartedAt           time.Time         `json:"startedAt"`
	CompletedAt         time.Time         `json:"completedAt"`
	BeforeIssues        severity.Summary  `json:"beforeIssues"`
	AfterIssues         severity.Summary  `json:"afterIssues"`
	ReductionPercentage float64           `json:"reductionPercentage"`
	ScanResults         []core.ScanResult `json:"scanResults"`
	FixResults          []core.FixResult  `json:"fixResults"`
	BuildSucceeded      *bool             `json:"buildSucceeded,omitempty"`
}

// NewScanExport builds the JSON document of r. Nil slices become empty.
func NewScanExport(r *core.ScanReport) ScanExport {
	return ScanExport{
		ProjectPath:    r.ProjectPath,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Summary:        r.Summary(),
		Issues:         nonNil(r.Issues),
		ScanResults:    exportResults(r.ScanResults),
		AffectedFiles:  nonNil(r.AffectedFiles),
		BuildSucceeded: r.BuildSucceeded,
	}
}

// NewPipelineExport builds the JSON document of r. Nil slices become empty.
func NewPipelineExport(r *core.PipelineReport) PipelineExport {
	return PipelineExport{
		ProjectPath:         r.ProjectPath,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		BeforeIssues:        r.BeforeIssues,
		AfterIssues:         r.AfterIssues,
		ReductionPercentage: r.ReductionPercentage(),
		ScanResults:         exportResults(r.ScanResults),
		FixResults:          nonNil(r.FixResults),
		BuildSucceeded:      r.BuildSucceeded,
	}
}

func scanJSON(r *core.ScanReport) (string, error) {
	return marshalIndent(NewScanExport(r))
}

func pipelineJSON(r *core.PipelineReport) (string, error) {
	return marshalIndent(NewPipelineExport(r))
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func exportResults(results []core.ScanResult) []core.ScanResult {
	out := make([]core.ScanResult, len(results))
	for i, r := range results {
		r.Issues = nonNil(r.Issues)
		out[i] = r
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
