package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

func scanText(r *core.ScanReport) string {
	s := r.Summary()
	var b strings.Builder

	b.WriteString("=== OhMyBug Scan Report ===\n")
	fmt.Fprintf(&b, "Project: %s\n", r.ProjectPath)
	fmt.Fprintf(&b, "Date: %s\n\n", r.CompletedAt.UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "Total: %d issues\n", s.Total)
	fmt.Fprintf(&b, "  Critical: %d\n", s.Critical)
	fmt.Fprintf(&b, "  High: %d\n", s.High)
	fmt.Fprintf(&b, "  Medium: %d\n", s.Medium)
	fmt.Fprintf(&b, "  Low: %d\n", s.Low)
	fmt.Fprintf(&b, "Affected files: %d\n", len(r.AffectedFiles))
	if r.BuildSucceeded != nil {
		fmt.Fprintf(&b, "Build: %s\n", buildStatus(*r.BuildSucceeded))
	}

	if len(r.Issues) > 0 {
		b.WriteString("\n--- Issues ---\n")
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "[%s] %s%s\n", strings.ToUpper(issue.Severity.String()), issue.FilePath, lineSuffix(issue))
			fmt.Fprintf(&b, "  Rule: %s\n", issue.Rule)
			fmt.Fprintf(&b, "  %s\n\n", issue.Message)
		}
	}
	return b.String()
}

func pipelineText(r *core.PipelineReport) string {
	var b strings.Builder

	b.WriteString("\n=== OhMyBug Pipeline Report ===\n")
	fmt.Fprintf(&b, "Project: %s\n", r.ProjectPath)
	fmt.Fprintf(&b, "Duration: %.1fs\n\n", r.Duration().Seconds())

	fmt.Fprintf(&b, "Before: %d issues (Critical: %d, High: %d, Medium: %d)\n",
		r.BeforeIssues.Total, r.BeforeIssues.Critical, r.BeforeIssues.High, r.BeforeIssues.Medium)
	fmt.Fprintf(&b, "After:  %d issues (Critical: %d, High: %d, Medium: %d)\n",
		r.AfterIssues.Total, r.AfterIssues.Critical, r.AfterIssues.High, r.AfterIssues.Medium)
	fmt.Fprintf(&b, "Reduction: %.0f%%\n", r.ReductionPercentage())

	if len(r.FixResults) > 0 {
		b.WriteString("\nFixes:\n")
		for _, fix := range r.FixResults {
			fmt.Fprintf(&b, "  %s: %d/%d files, %d issues fixed\n", fix.Tool, fix.FixedFiles, fix.TotalFiles, fix.FixedIssueCount)
		}
	}

	if r.BuildSucceeded != nil {
		fmt.Fprintf(&b, "\nBuild: %s\n", buildStatus(*r.BuildSucceeded))
	}
	return b.String()
}

func scanMarkdown(r *core.ScanReport) string {
	s := r.Summary()
	var b strings.Builder

	b.WriteString("# OhMyBug Scan Report\n\n")
	fmt.Fprintf(&b, "**Project**: `%s`\n", r.ProjectPath)
	fmt.Fprintf(&b, "**Date**: %s\n\n", r.CompletedAt.UTC().Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Severity | Count |\n")
	b.WriteString("|----------|-------|\n")
	fmt.Fprintf(&b, "| Critical | %d |\n", s.Critical)
	fmt.Fprintf(&b, "| High | %d |\n", s.High)
	fmt.Fprintf(&b, "| Medium | %d |\n", s.Medium)
	fmt.Fprintf(&b, "| Low | %d |\n", s.Low)
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", s.Total)

	if len(r.Issues) == 0 {
		return b.String()
	}

	b.WriteString("## Issues\n\n")
	paths, groups := groupByFile(r.Issues)
	for _, path := range paths {
		fmt.Fprintf(&b, "### `%s`\n\n", core.RelativePath(r.ProjectPath, path))
		for _, issue := range groups[path] {
			line := ""
			if issue.Line != nil {
				line = fmt.Sprintf(" L%d", *issue.Line)
			}
			fmt.Fprintf(&b, "- %s **%s**%s: %s\n", severityEmoji(issue.Severity), issue.Rule, line, issue.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pipelineMarkdown(r *core.PipelineReport) string {
	before, after := r.BeforeIssues, r.AfterIssues
	var b strings.Builder

	b.WriteString("# OhMyBug Pipeline Report\n\n")
	b.WriteString("| Metric | Before | After | Change |\n")
	b.WriteString("|--------|--------|-------|--------|\n")
	fmt.Fprintf(&b, "| Total | %d | %d | -%.0f%% |\n", before.Total, after.Total, r.ReductionPercentage())
	fmt.Fprintf(&b, "| Critical | %d | %d | |\n", before.Critical, after.Critical)
	fmt.Fprintf(&b, "| High | %d | %d | |\n", before.High, after.High)
	fmt.Fprintf(&b, "| Medium | %d | %d | |\n", before.Medium, after.Medium)

	if r.BuildSucceeded != nil {
		mark := "✅"
		if !*r.BuildSucceeded {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n**Build**: %s %s\n", buildStatus(*r.BuildSucceeded), mark)
	}

	if len(r.FixResults) > 0 {
		b.WriteString("\n## Auto-Fix Summary\n\n")
		for _, fix := range r.FixResults {
			fmt.Fprintf(&b, "- **%s**: %d/%d files, %d issues fixed\n", fix.Tool, fix.FixedFiles, fix.TotalFiles, fix.FixedIssueCount)
		}
	}
	return b.String()
}

func lineSuffix(issue core.Issue) string {
	if issue.Line == nil {
		return ""
	}
	return fmt.Sprintf(":%d", *issue.Line)
}

func buildStatus(ok bool) string {
	if ok {
		return "SUCCEEDED"
	}
	return "FAILED"
}

func severityEmoji(level severity.Level) string {
	switch level {
	case severity.Critical:
		return "🔴"
	case severity.High:
		return "🟠"
	case severity.Medium:
		return "🟡"
	case severity.Low:
		return "🔵"
	default:
		return "⚪"
	}
}
