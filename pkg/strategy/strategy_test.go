package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/exploopio/ohmybug/pkg/core"
	"github.com/exploopio/ohmybug/pkg/gitenv"
	"github.com/exploopio/ohmybug/pkg/shared/severity"
)

type fakeEnv struct {
	*gitenv.LocalEnv
	mr, base string
}

func (e *fakeEnv) MergeRequestID() string  { return e.mr }
func (e *fakeEnv) TargetBranchSha() string { return e.base }

type fakeRunner struct {
	result *core.ExecResult
	err    error
	args   []string
}

func (r *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (*core.ExecResult, error) {
	r.args = append([]string{name}, args...)
	return r.result, r.err
}

func (r *fakeRunner) RunShell(ctx context.Context, dir, command string) (*core.ExecResult, error) {
	return nil, errors.New("not used")
}

const diffOutput = "M\tsrc/app.js\nA\tsrc/new.js\nD\told.js\nR087\tlib/a.py\tlib/b.py\n"

func TestParseGitDiffOutput(t *testing.T) {
	files := parseGitDiffOutput(diffOutput)
	want := []ChangedFile{
		{Path: "src/app.js", Status: ChangeModified},
		{Path: "src/new.js", Status: ChangeAdded},
		{Path: "old.js", Status: ChangeDeleted},
		{Path: "lib/b.py", Status: ChangeRenamed, OldPath: "lib/a.py"},
	}
	if len(files) != len(want) {
		t.Fatalf("len(files) = %d, want %d", len(files), len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %+v, want %+v", i, files[i], want[i])
		}
	}
	if got := parseGitDiffOutput(""); len(got) != 0 {
		t.Errorf("empty output = %v", got)
	}
}

func TestDetermine(t *testing.T) {
	env := func(mr, base, head string) *fakeEnv {
		return &fakeEnv{LocalEnv: gitenv.NewLocalEnv("", "feature", head), mr: mr, base: base}
	}
	ok := &core.ExecResult{Stdout: diffOutput}

	tests := []struct {
		name   string
		sc     *Context
		want   Scope
		nFiles int
	}{
		{"nil context", nil, AllFiles, 0},
		{"no env", &Context{}, AllFiles, 0},
		{"not a merge request", &Context{Env: env("", "base", "head"), Runner: &fakeRunner{result: ok}}, AllFiles, 0},
		{"same commit", &Context{Env: env("7", "abc", "abc"), Runner: &fakeRunner{result: ok}}, AllFiles, 0},
		{"git fails", &Context{Env: env("7", "base", "head"), Runner: &fakeRunner{result: &core.ExecResult{ExitCode: 128, Stderr: "bad revision"}}}, AllFiles, 0},
		{"git missing", &Context{Env: env("7", "base", "head"), Runner: &fakeRunner{err: errors.New("not found")}}, AllFiles, 0},
		{"too many files", &Context{Env: env("7", "base", "head"), MaxChangedFiles: 3, Runner: &fakeRunner{result: ok}}, AllFiles, 0},
		{"changed files", &Context{Env: env("7", "base", "head"), Runner: &fakeRunner{result: ok}}, ChangedFileOnly, 4},
		{"explicit baseline", &Context{Env: env("", "", "head"), BaselineCommitSha: "base", Runner: &fakeRunner{result: ok}}, ChangedFileOnly, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, files := Determine(context.Background(), tt.sc)
			if scope != tt.want || len(files) != tt.nFiles {
				t.Errorf("Determine() = %s with %d files, want %s with %d", scope, len(files), tt.want, tt.nFiles)
			}
		})
	}
}

func TestGetChangedFiles_Args(t *testing.T) {
	r := &fakeRunner{result: &core.ExecResult{Stdout: "M\ta.go\n"}}
	if _, err := GetChangedFiles(context.Background(), r, "/repo", "head", "base"); err != nil {
		t.Fatal(err)
	}
	want := []string{"git", "diff", "--relative", "--name-status", "base", "head"}
	if len(r.args) != len(want) {
		t.Fatalf("args = %v, want %v", r.args, want)
	}
	for i := range want {
		if r.args[i] != want[i] {
			t.Errorf("args = %v, want %v", r.args, want)
			break
		}
	}
}

func TestFilterIssuesAndScoped(t *testing.T) {
	files := parseGitDiffOutput(diffOutput)
	issues := []core.Issue{
		core.NewIssue("ESLint", "semi", "m", severity.High, "/repo/src/app.js", 1, 1),
		core.NewIssue("ESLint", "semi", "m", severity.High, "/repo/src/untouched.js", 1, 1),
		core.NewIssue("ESLint", "semi", "m", severity.High, "/repo/old.js", 1, 1),
		core.NewIssue("Ruff", "F401", "m", severity.High, "/repo/lib/b.py", 2, 1),
	}

	kept := FilterIssues(issues, "/repo", files)
	if len(kept) != 2 || kept[0].FilePath != "/repo/src/app.js" || kept[1].FilePath != "/repo/lib/b.py" {
		t.Errorf("FilterIssues() = %+v", kept)
	}

	report := &core.ScanReport{ProjectPath: "/repo", Issues: issues, AffectedFiles: core.AffectedFiles(issues)}
	if got := Scoped(report, AllFiles, "/repo", files); got != report {
		t.Error("AllFiles should return the report unchanged")
	}
	scoped := Scoped(report, ChangedFileOnly, "/repo", files)
	if len(scoped.Issues) != 2 || len(scoped.AffectedFiles) != 2 {
		t.Errorf("scoped = %d issues, %d files", len(scoped.Issues), len(scoped.AffectedFiles))
	}
	if len(report.Issues) != 4 {
		t.Error("Scoped must not modify the original report")
	}
}

func TestScope_String(t *testing.T) {
	if AllFiles.String() != "all_files" || ChangedFileOnly.String() != "changed_files_only" || Scope(9).String() != "unknown" {
		t.Error("unexpected Scope strings")
	}
}
