package report

import (
	"encoding/json"
	"path/filepath"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/fingerprint"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// SARIF 2.1.0 identifiers.
const (
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

// =============================================================================
// SARIF Types
// =============================================================================

// SARIFLog is the root SARIF document.
type SARIFLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema,omitempty"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single run of a tool.
type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

// SARIFTool describes the tool.
type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

// SARIFDriver contains tool metadata.
type SARIFDriver struct {
	Name            string      `json:"name"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
}

// SARIFRule describes a rule/check.
type SARIFRule struct {
	ID                   string           `json:"id"`
	DefaultConfiguration *SARIFRuleConfig `json:"defaultConfiguration,omitempty"`
}

// SARIFRuleConfig holds rule configuration.
type SARIFRuleConfig struct {
	Level string `json:"level,omitempty"`
}

// SARIFResult represents a finding.
type SARIFResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             SARIFMessage      `json:"message"`
	Locations           []SARIFLocation   `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

// SARIFMessage holds text.
type SARIFMessage struct {
	Text string `json:"text"`
}

// SARIFLocation represents a code location.
type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
}

// SARIFPhysicalLocation contains file/region info.
type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
	Region           SARIFRegion           `json:"region"`
}

// SARIFArtifactLocation contains file path.
type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

// SARIFRegion contains 1-based line/column info.
type SARIFRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
}

// =============================================================================
// Conversion
// =============================================================================

// BuildSARIF converts issues into a SARIF log with one run. URIs are
// relative to projectPath; missing lines and columns default to 1.
func BuildSARIF(projectPath string, issues []core.Issue) *SARIFLog {
	results := make([]SARIFResult, 0, len(issues))
	ruleLevels := make(map[string]severity.Level)
	var ruleOrder []string

	for _, issue := range issues {
		uri := filepath.ToSlash(core.RelativePath(projectPath, issue.FilePath))
		line, column := issue.LineOrZero(), issue.ColumnOrZero()
		if line < 1 {
			line = 1
		}
		if column < 1 {
			column = 1
		}

		results = append(results, SARIFResult{
			RuleID:  issue.Rule,
			Level:   issue.Severity.SARIFLevel(),
			Message: SARIFMessage{Text: issue.Message},
			Locations: []SARIFLocation{{
				PhysicalLocation: SARIFPhysicalLocation{
					ArtifactLocation: SARIFArtifactLocation{URI: uri},
					Region:           SARIFRegion{StartLine: line, StartColumn: column},
				},
			}},
			PartialFingerprints: map[string]string{
				fingerprint.Version: fingerprint.Generate(fingerprint.Input{
					RuleID:   issue.Rule,
					FilePath: uri,
					Message:  issue.Message,
					Line:     issue.LineOrZero(),
				}),
			},
			Properties: map[string]any{
				"scanner":  issue.Scanner,
				"severity": issue.Severity.String(),
			},
		})

		prev, seen := ruleLevels[issue.Rule]
		if !seen {
			ruleOrder = append(ruleOrder, issue.Rule)
		}
		ruleLevels[issue.Rule] = severity.Max(prev, issue.Severity)
	}

	rules := make([]SARIFRule, 0, len(ruleOrder))
	for _, id := range ruleOrder {
		rules = append(rules, SARIFRule{
			ID:                   id,
			DefaultConfiguration: &SARIFRuleConfig{Level: ruleLevels[id].SARIFLevel()},
		})
	}

	return &SARIFLog{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []SARIFRun{{
			Tool: SARIFTool{Driver: SARIFDriver{
				Name:            ToolName,
				SemanticVersion: ToolVersion,
				InformationURI:  ToolURI,
				Rules:           rules,
			}},
			Results: results,
		}},
	}
}

func marshalSARIF(projectPath string, issues []core.Issue) (string, error) {
	data, err := json.MarshalIndent(BuildSARIF(projectPath, issues), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
