// Package strategy decides which issues a pull request should be told
// about. In a PR/MR with a known base commit only issues in files the change
// touched are commented on; otherwise every issue is in scope.
package strategy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/gitenv"
)

// Scope represents which files issues are reported for.
type Scope int

const (
	// AllFiles reports issues in every file
	AllFiles Scope = iota
	// ChangedFileOnly reports issues only in files changed by the PR/MR
	ChangedFileOnly
)

// String returns the string representation of the scope.
func (s Scope) String() string {
	switch s {
	case AllFiles:
		return "all_files"
	case ChangedFileOnly:
		return "changed_files_only"
	default:
		return "unknown"
	}
}

// MaxChangedFiles is the threshold for switching from ChangedFileOnly to AllFiles.
// A change this large is reviewed as a whole.
const MaxChangedFiles = 512

// ChangedFile represents a file that was changed between commits.
type ChangedFile struct {
	Path    string       // File path relative to repo root
	Status  ChangeStatus // Type of change
	OldPath string       // Previous path (for renames)
}

// ChangeStatus represents the type of file change.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeDeleted  ChangeStatus = "deleted"
	ChangeRenamed  ChangeStatus = "renamed"
)

// Context holds what Determine needs.
type Context struct {
	Env               gitenv.Env
	BaselineCommitSha string // Overrides Env.TargetBranchSha
	RepoPath          string
	MaxChangedFiles   int
	Runner            core.CommandRunner // default: core.ExecRunner
	Logger            core.Logger
}

// Determine picks the scope. Any failure to compute the changed files falls
// back to AllFiles.
func Determine(ctx context.Context, sc *Context) (Scope, []ChangedFile) {
	if sc == nil || sc.Env == nil {
		return AllFiles, nil
	}
	logger := sc.Logger
	if logger == nil {
		logger = &core.NopLogger{}
	}

	maxFiles := sc.MaxChangedFiles
	if maxFiles == 0 {
		maxFiles = MaxChangedFiles
	}

	baselineSha := sc.BaselineCommitSha
	if baselineSha == "" && sc.Env.MergeRequestID() != "" {
		baselineSha = sc.Env.TargetBranchSha()
	}
	if baselineSha == "" {
		logger.Debug("[strategy] No baseline commit, using AllFiles")
		return AllFiles, nil
	}

	currentSha := sc.Env.CommitSha()
	if currentSha == "" || currentSha == baselineSha {
		logger.Debug("[strategy] Same commit as baseline, using AllFiles")
		return AllFiles, nil
	}

	runner := sc.Runner
	if runner == nil {
		runner = core.NewExecRunner()
	}
	changedFiles, err := GetChangedFiles(ctx, runner, sc.RepoPath, currentSha, baselineSha)
	if err != nil {
		logger.Debug("[strategy] Failed to get changed files: %v, using AllFiles", err)
		return AllFiles, nil
	}

	if len(changedFiles) == 0 {
		logger.Debug("[strategy] No changed files detected, using AllFiles")
		return AllFiles, nil
	}
	if len(changedFiles) >= maxFiles {
		logger.Debug("[strategy] Too many changed files (%d >= %d), using AllFiles", len(changedFiles), maxFiles)
		return AllFiles, nil
	}

	logger.Debug("[strategy] %d changed files detected, using ChangedFileOnly", len(changedFiles))
	return ChangedFileOnly, changedFiles
}

// GetChangedFiles returns the files changed between two commits, with paths
// relative to repoPath.
func GetChangedFiles(ctx context.Context, runner core.CommandRunner, repoPath, currentSha, baselineSha string) ([]ChangedFile, error) {
	res, err := runner.Run(ctx, repoPath, "git", "diff", "--relative", "--name-status", baselineSha, currentSha)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	if !res.Succeeded() {
		return nil, fmt.Errorf("git diff failed (exit %d): %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return parseGitDiffOutput(res.Stdout), nil
}

// parseGitDiffOutput parses the output of git diff --name-status.
func parseGitDiffOutput(output string) []ChangedFile {
	var files []ChangedFile
	for line := range strings.SplitSeq(strings.TrimSpace(output), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		status := parts[0]
		path := parts[1]
		oldPath := ""

		// Renames and copies carry a similarity score (R100) and two paths
		if (status[0] == 'R' || status[0] == 'C') && len(parts) >= 3 {
			oldPath = parts[1]
			path = parts[2]
		}

		var changeStatus ChangeStatus
		switch status[0] {
		case 'A', 'C':
			changeStatus = ChangeAdded
		case 'D':
			changeStatus = ChangeDeleted
		case 'R':
			changeStatus = ChangeRenamed
		default:
			changeStatus = ChangeModified
		}

		files = append(files, ChangedFile{Path: path, Status: changeStatus, OldPath: oldPath})
	}
	return files
}

// GetPaths extracts file paths from changed files, skipping deletions.
func GetPaths(files []ChangedFile) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.Status != ChangeDeleted {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// FilterIssues keeps the issues whose file, relative to repoPath, was
// changed and not deleted.
func FilterIssues(issues []core.Issue, repoPath string, files []ChangedFile) []core.Issue {
	changed := make(map[string]bool, len(files))
	for _, p := range GetPaths(files) {
		changed[p] = true
	}

	var kept []core.Issue
	for _, issue := range issues {
		rel := filepath.ToSlash(core.RelativePath(repoPath, issue.FilePath))
		if changed[rel] {
			kept = append(kept, issue)
		}
	}
	return kept
}

// Scoped returns report itself for AllFiles, or a copy holding only the
// issues in changed files.
func Scoped(report *core.ScanReport, scope Scope, repoPath string, files []ChangedFile) *core.ScanReport {
	if report == nil || scope != ChangedFileOnly {
		return report
	}
	scoped := *report
	scoped.Issues = FilterIssues(report.Issues, repoPath, files)
	scoped.AffectedFiles = core.AffectedFiles(scoped.Issues)
	return &scoped
}
