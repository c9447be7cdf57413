// Package base holds what the tool adapters share: process invocation,
// availability probing and the before/after comparison behind every
// re-scan based fixer.
package base

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/errors"
)

// maxErrorOutput caps the tool output quoted in error messages.
const maxErrorOutput = 500

// Tool runs one external binary.
type Tool struct {
	Name    string             // Display name used in results and errors
	Binary  string             // Executable looked up in PATH
	Runner  core.CommandRunner // Process runner (default: core.ExecRunner)
	Logger  core.Logger        // Diagnostic logger (default: NopLogger)
	Verbose bool               // Log every command line

	version string
}

// NewTool creates a tool that runs binary with the default runner.
func NewTool(name, binary string) *Tool {
	return &Tool{
		Name:   name,
		Binary: binary,
		Runner: core.NewExecRunner(),
		Logger: &core.NopLogger{},
	}
}

// IsAvailable reports whether the binary is in PATH.
func (t *Tool) IsAvailable(ctx context.Context) bool {
	return core.LookPath(t.Binary) != ""
}

// Version returns the first line of "binary versionArg", cached after the
// first successful call.
func (t *Tool) Version(ctx context.Context, versionArg string) string {
	if t.version != "" {
		return t.version
	}
	ok, v, err := core.CheckBinaryInstalled(ctx, t.Binary, versionArg)
	if err != nil || !ok {
		return ""
	}
	t.version = v
	return v
}

// Exec runs the binary with args in dir. A non-zero exit status is returned
// in the result, not as an error; only a failure to start or a cancelled
// context is an error.
func (t *Tool) Exec(ctx context.Context, dir string, args ...string) (*core.ExecResult, error) {
	runner := t.Runner
	if runner == nil {
		runner = core.NewExecRunner()
	}
	if t.Verbose && t.Logger != nil {
		t.Logger.Debug("[%s] %s %s", t.Name, t.Binary, strings.Join(args, " "))
	}

	result, err := runner.Run(ctx, dir, t.Binary, args...)
	if err != nil {
		return result, errors.ToolExecution("scanners.Exec", t.Name, err)
	}
	return result, nil
}

// Failure builds the error for a run whose output could not be used.
func (t *Tool) Failure(result *core.ExecResult, cause error) error {
	msg := strings.TrimSpace(result.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(result.Stdout)
	}
	if msg != "" {
		cause = errors.E(errors.KindToolExecution, "exit "+strconv.Itoa(result.ExitCode), core.Truncate(msg, maxErrorOutput), cause)
	}
	return errors.ToolExecution("scanners.Parse", t.Name, cause)
}

// =============================================================================
// Fix accounting
// =============================================================================

// CompareFix builds a FixResult from the issues reported before and after a
// fixer ran. A file counts as fixed when its issue count dropped.
func CompareFix(tool string, before, after []core.Issue, totalFiles int, elapsed time.Duration) *core.FixResult {
	beforeByFile := countByFile(before)
	afterByFile := countByFile(after)

	fixedFiles := 0
	for file, n := range beforeByFile {
		if afterByFile[file] < n {
			fixedFiles++
		}
	}

	fixed := len(before) - len(after)
	if fixed < 0 {
		fixed = 0
	}

	return &core.FixResult{
		Tool:            tool,
		TotalFiles:      totalFiles,
		FixedFiles:      fixedFiles,
		FixedIssueCount: fixed,
		Duration:        elapsed,
	}
}

// UniqueFiles returns the number of distinct file paths among issues.
func UniqueFiles(issues []core.Issue) int {
	return len(countByFile(issues))
}

func countByFile(issues []core.Issue) map[string]int {
	counts := make(map[string]int, len(issues))
	for _, issue := range issues {
		counts[issue.FilePath]++
	}
	return counts
}

// BaseTool returns t. Adapters embedding a Tool expose it through this
// method so the registry can configure them uniformly.
func (t *Tool) BaseTool() *Tool {
	return t
}
