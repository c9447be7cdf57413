package swiftformat

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

// lintLine matches "path:line:col: warning: (rule) message".
var lintLine = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(?:warning|error):\s*\((\w+)\)\s*(.*)$`)

// ParseLint converts `swiftformat --lint` output into low severity issues.
// Lines that are not findings, such as the run summary, are ignored.
func ParseLint(data []byte, projectPath string) ([]core.Issue, error) {
	issues := make([]core.Issue, 0)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := lintLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		column, _ := strconv.Atoi(m[3])
		issues = append(issues, core.NewIssue(
			Name, m[4], m[5], severity.Low,
			core.AbsolutePath(projectPath, m[1]), line, column,
		))
	}
	return issues, sc.Err()
}
