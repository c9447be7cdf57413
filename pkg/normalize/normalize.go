// Package normalize turns the raw issue stream of a scan pass into the
// report's issue list: generated and vendored paths are dropped, duplicates
// reported by several tools are collapsed, and critical findings in test code
// are downgraded.
//
// Every function is pure. Inputs are never mutated; adjusted issues are
// copies.
package normalize

import (
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// MaxMessageKeyLength is the rune length of the message part of a dedup key.
const MaxMessageKeyLength = 80

// ExcludePatterns are path substrings identifying vendored, built or
// generated files. Issues in such files never reach a report.
var ExcludePatterns = []string{
	"/ios_old/",
	"/worktree/",
	"GeneratedPluginRegistrant.swift",
	".g.dart",
	".freezed.dart",
	".gr.dart",
	"/DerivedData/",
	"/build/",
	"/.dart_tool/",
	"/node_modules/",
	"/vendor/",
	"/.venv/",
	".pb.go",
	"_generated.go",
}

// TestPathMarkers are path substrings identifying test code.
var TestPathMarkers = []string{
	"/test/",
	"/tests/",
	"_test.",
	"Test.",
	"/Fixtures/",
	"/testdata/",
	".test.",
	".spec.",
	"/__tests__/",
}

// BoilerplatePrefixes are stripped from lower-cased messages before keying,
// so the same finding worded by two tools collapses into one.
var BoilerplatePrefixes = []string{
	"the named parameter ",
	"unused import: ",
	"don't invoke ",
}

// Normalize applies FilterExcluded, Deduplicate and AdjustTestSeverity in
// that order.
func Normalize(issues []core.Issue) []core.Issue {
	return AdjustTestSeverity(Deduplicate(FilterExcluded(issues)))
}

// Remaining returns the post-fix issues of r as counted by r.AfterIssues.
// Reports built outside the engine carry only raw scan results; those are
// normalized here.
func Remaining(r *core.PipelineReport) []core.Issue {
	if r == nil {
		return nil
	}
	if r.RemainingIssues != nil {
		return r.RemainingIssues
	}
	return Normalize(r.AfterIssueList())
}

// IsExcluded reports whether path matches one of ExcludePatterns.
func IsExcluded(path string) bool {
	return containsAny(path, ExcludePatterns)
}

// IsTestPath reports whether path matches one of TestPathMarkers.
func IsTestPath(path string) bool {
	return containsAny(path, TestPathMarkers)
}

// FilterExcluded drops issues whose file path is excluded.
func FilterExcluded(issues []core.Issue) []core.Issue {
	out := make([]core.Issue, 0, len(issues))
	for _, issue := range issues {
		if IsExcluded(issue.FilePath) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// Deduplicate keeps one issue per (file, line, normalized message), always
// the most severe one. The result is ordered by severity, highest first;
// issues of equal severity keep their input order.
func Deduplicate(issues []core.Issue) []core.Issue {
	sorted := slices.Clone(issues)
	slices.SortStableFunc(sorted, func(a, b core.Issue) int {
		return b.Severity.Priority() - a.Severity.Priority()
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]core.Issue, 0, len(sorted))
	for _, issue := range sorted {
		key := DedupKey(issue)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, issue)
	}
	return out
}

// DedupKey returns "path:line:normalizedMessage" with line 0 when absent.
func DedupKey(issue core.Issue) string {
	return issue.FilePath + ":" + strconv.Itoa(issue.LineOrZero()) + ":" + NormalizeMessage(issue.Message)
}

// NormalizeMessage lower-cases msg, trims surrounding whitespace, periods and
// quotes, strips boilerplate prefixes and caps the result at
// MaxMessageKeyLength runes.
func NormalizeMessage(msg string) string {
	msg = strings.ToLower(msg)
	msg = strings.TrimSpace(msg)
	msg = strings.Trim(msg, `.'"`)

	for _, prefix := range BoilerplatePrefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}

	if utf8.RuneCountInString(msg) > MaxMessageKeyLength {
		msg = string([]rune(msg)[:MaxMessageKeyLength])
	}
	return msg
}

// AdjustTestSeverity downgrades critical issues in test code to high.
func AdjustTestSeverity(issues []core.Issue) []core.Issue {
	out := make([]core.Issue, len(issues))
	for i, issue := range issues {
		if issue.Severity == severity.Critical && IsTestPath(issue.FilePath) {
			issue = issue.WithSeverity(severity.High)
		}
		out[i] = issue
	}
	return out
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
