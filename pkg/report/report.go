// Package report serializes scan and pipeline reports.
//
// JSON field names and the SARIF severity mapping are stable; the text,
// Markdown and HTML renderings are meant for people and may change.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
	"github.com/exploopio/ohmybug/pkg/normalize"
)

// ToolName and ToolVersion identify the producer in SARIF output.
const (
	ToolName    = "OhMyBug"
	ToolVersion = "1.0.0"
	ToolURI     = "https://github.com/exploopio/ohmybug"
)

// Format is an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatSARIF    Format = "sarif"
	FormatHTML     Format = "html"
)

// AllFormats returns every supported format.
func AllFormats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatJSON, FormatSARIF, FormatHTML}
}

// ParseFormat parses a format name. Common aliases (md, txt, htm) are accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "sarif":
		return FormatSARIF, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", errors.InvalidInput("report.ParseFormat", fmt.Sprintf("unknown format %q", s))
}

// Extension returns the suggested file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	case FormatSARIF:
		return "sarif"
	case FormatHTML:
		return "html"
	default:
		return "txt"
	}
}

// FormatScan renders a scan report.
func FormatScan(r *core.ScanReport, format Format) (string, error) {
	if r == nil {
		return "", errors.InvalidInput("report.FormatScan", "nil report")
	}
	switch format {
	case FormatText:
		return scanText(r), nil
	case FormatMarkdown:
		return scanMarkdown(r), nil
	case FormatJSON:
		return scanJSON(r)
	case FormatSARIF:
		return marshalSARIF(r.ProjectPath, r.Issues)
	case FormatHTML:
		return scanHTML(r)
	}
	return "", errors.InvalidInput("report.FormatScan", fmt.Sprintf("unknown format %q", format))
}

// FormatPipeline renders a pipeline report.
func FormatPipeline(r *core.PipelineReport, format Format) (string, error) {
	if r == nil {
		return "", errors.InvalidInput("report.FormatPipeline", "nil report")
	}
	switch format {
	case FormatText:
		return pipelineText(r), nil
	case FormatMarkdown:
		return pipelineMarkdown(r), nil
	case FormatJSON:
		return pipelineJSON(r)
	case FormatSARIF:
		return marshalSARIF(r.ProjectPath, remainingIssues(r))
	case FormatHTML:
		return pipelineHTML(r)
	}
	return "", errors.InvalidInput("report.FormatPipeline", fmt.Sprintf("unknown format %q", format))
}

// WriteFile writes rendered output to path, creating parent directories.
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IO("report.WriteFile", "create directory", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.IO("report.WriteFile", "write report", err)
	}
	return nil
}

func remainingIssues(r *core.PipelineReport) []core.Issue {
	return normalize.Remaining(r)
}

// groupByFile groups issues by file path. Paths are returned sorted.
func groupByFile(issues []core.Issue) ([]string, map[string][]core.Issue) {
	groups := make(map[string][]core.Issue)
	var paths []string
	for _, issue := range issues {
		if _, ok := groups[issue.FilePath]; !ok {
			paths = append(paths, issue.FilePath)
		}
		groups[issue.FilePath] = append(groups[issue.FilePath], issue)
	}
	slices.Sort(paths)
	return paths, groups
}
