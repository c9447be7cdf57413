package dart

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// machineSeverity maps the first field of the machine format.
var machineSeverity = map[string]severity.Level{
	"ERROR":   severity.High,
	"WARNING": severity.Medium,
	"INFO":    severity.Low,
}

// ParseMachine converts `dart analyze --format=machine` output, one
// SEVERITY|TYPE|CODE|FILE|LINE|COLUMN|LENGTH|MESSAGE record per line.
func ParseMachine(data []byte, projectPath string) ([]core.Issue, error) {
	issues := make([]core.Issue, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "|")
		if len(parts) < 8 {
			continue
		}
		sev, ok := machineSeverity[strings.TrimSpace(parts[0])]
		if !ok {
			continue
		}
		line, _ := strconv.Atoi(strings.TrimSpace(parts[4]))
		column, _ := strconv.Atoi(strings.TrimSpace(parts[5]))
		issues = append(issues, core.NewIssue(
			AnalyzerName,
			strings.ToLower(strings.TrimSpace(parts[2])),
			strings.TrimSpace(strings.Join(parts[7:], "|")),
			sev,
			core.AbsolutePath(projectPath, strings.TrimSpace(parts[3])),
			line, column,
		))
	}
	return issues, sc.Err()
}

// flutterLine matches "  info • message • lib/main.dart:3:8 • rule_name".
var flutterLine = regexp.MustCompile(`^\s*(info|warning|error)\s+•\s+(.+?)\s+•\s+(.+?):(\d+):(\d+)\s+•\s+(\S+)`)

// ParseFlutter converts `flutter analyze` output into issues.
func ParseFlutter(data []byte, projectPath string) ([]core.Issue, error) {
	issues := make([]core.Issue, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := flutterLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		sev := severity.Low
		switch m[1] {
		case "error":
			sev = severity.High
		case "warning":
			sev = severity.Medium
		}
		line, _ := strconv.Atoi(m[4])
		column, _ := strconv.Atoi(m[5])
		issues = append(issues, core.NewIssue(
			FlutterAnalyzerName, m[6], m[2], sev,
			core.AbsolutePath(projectPath, m[3]), line, column,
		))
	}
	return issues, sc.Err()
}
