package build

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

var (
	// /path/File.swift:12:5: error: cannot find 'x' in scope
	swiftPattern = regexp.MustCompile(`(.+\.swift):(\d+):(\d+):\s*(error|warning):\s*(.*)`)

	//   error • Undefined name 'x' • lib/main.dart:3:5 • undefined_identifier
	dartPattern = regexp.MustCompile(`^\s*(error|warning)\s+•\s+(.+?)\s+•\s+(.+?):(\d+):(\d+)\s+•\s+(\S+)`)

	// ./main.go:5:2: undefined: x
	goPattern = regexp.MustCompile(`^(.+\.go):(\d+):(\d+):\s*(.*)$`)
)

// ParseSwift extracts swiftc and xcodebuild diagnostics.
func ParseSwift(output, targetPath string) []core.Issue {
	issues := make([]core.Issue, 0)
	for _, line := range strings.Split(output, "\n") {
		m := swiftPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		issues = append(issues, diagnostic(m[4], m[5], core.AbsolutePath(targetPath, m[1]), m[2], m[3]))
	}
	return issues
}

// ParseDart extracts `flutter analyze` errors and warnings. Infos are not
// build problems and are skipped.
func ParseDart(output, targetPath string) []core.Issue {
	issues := make([]core.Issue, 0)
	for _, line := range strings.Split(output, "\n") {
		m := dartPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		issue := diagnostic(m[1], m[2], core.AbsolutePath(targetPath, m[3]), m[4], m[5])
		issues = append(issues, issue)
	}
	return issues
}

// ParseGo extracts `go build` errors. Every Go compiler diagnostic fails
// the build, so all are errors.
func ParseGo(output, targetPath string) []core.Issue {
	issues := make([]core.Issue, 0)
	for _, line := range strings.Split(output, "\n") {
		m := goPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		issues = append(issues, diagnostic("error", m[4], core.AbsolutePath(targetPath, m[1]), m[2], m[3]))
	}
	return issues
}

func diagnostic(kind, message, path, line, column string) core.Issue {
	sev := severity.Medium
	if kind == "error" {
		sev = severity.Critical
	}
	l, _ := strconv.Atoi(line)
	c, _ := strconv.Atoi(column)
	return core.NewIssue(Name, "build_"+kind, strings.TrimSpace(message), sev, path, l, c)
}
